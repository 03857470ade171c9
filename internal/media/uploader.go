package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/storage"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// Authorizer re-checks that a user may change a community.
type Authorizer interface {
	CanEditCommunity(ctx context.Context, userID, communityID string) (*community.Community, error)
}

// Sanitizer rewrites image bytes without metadata.
type Sanitizer interface {
	Sanitize(data []byte, mimeType string) ([]byte, error)
}

// LinkFunc attaches a stored item to another entity, for example as a cover.
type LinkFunc func(ctx context.Context, item *Item) error

// UploadRequest is one file destined for a community's gallery.
type UploadRequest struct {
	UserID      string
	CommunityID string
	Site        Site
	MimeType    string
	Data        []byte

	// Link runs after the item is stored. Its failure does not undo the upload.
	Link LinkFunc
}

// UploadResult is the outcome of a stored upload. LinkError is set when the
// item was stored but Link failed; the item stays in the gallery.
type UploadResult struct {
	Item      *Item
	LinkError error
}

// Linked reports whether a requested link succeeded.
func (r *UploadResult) Linked() bool { return r.LinkError == nil }

// Uploader runs the upload saga: authorize, validate, sanitize, put the
// object, insert the row (removing the object if the insert fails), link.
type Uploader struct {
	repo      Repository
	store     storage.Store
	auth      Authorizer
	policies  Policies
	sanitizer Sanitizer
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// UploaderConfig holds the Uploader's collaborators. Sanitizer and Metrics
// are optional.
type UploaderConfig struct {
	Repository Repository
	Store      storage.Store
	Authorizer Authorizer
	Policies   Policies
	Sanitizer  Sanitizer
	Metrics    *Metrics
	Logger     *slog.Logger
}

// NewUploader creates an Uploader.
func NewUploader(cfg UploaderConfig) *Uploader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		repo:      cfg.Repository,
		store:     cfg.Store,
		auth:      cfg.Authorizer,
		policies:  cfg.Policies,
		sanitizer: cfg.Sanitizer,
		metrics:   cfg.Metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ObjectKey returns the storage key for a new upload.
func ObjectKey(communityID, mimeType string) string {
	return fmt.Sprintf("communities/%s/%s%s", communityID, uuid.NewString(), extensionFor(mimeType))
}

// Upload stores req.Data. Errors before the object is written leave storage
// and the database untouched. A failed metadata insert removes the object
// and returns ErrMetadataInsert.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (_ *UploadResult, err error) {
	ctx, end := tracing.StartSpan(ctx, "media.upload",
		attribute.String("media.site", string(req.Site)),
		attribute.String("community.id", req.CommunityID),
	)
	defer func() { end(err) }()

	if _, err := u.auth.CanEditCommunity(ctx, req.UserID, req.CommunityID); err != nil {
		u.metrics.observeUpload(req.Site, OutcomeDenied, 0)
		return nil, err
	}

	policy, ok := u.policies[req.Site]
	if !ok {
		return nil, ErrUnknownSite
	}
	if err := policy.Validate(req.MimeType, int64(len(req.Data))); err != nil {
		u.metrics.observeUpload(req.Site, OutcomeRejected, 0)
		return nil, err
	}
	mimeType := normalizeMIME(req.MimeType)

	data := req.Data
	if u.sanitizer != nil {
		clean, err := u.sanitizer.Sanitize(data, mimeType)
		if err != nil {
			u.metrics.observeUpload(req.Site, OutcomeRejected, 0)
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		data = clean
	}

	key := ObjectKey(req.CommunityID, mimeType)
	if err := u.store.Put(ctx, key, mimeType, data); err != nil {
		u.logger.ErrorContext(ctx, "media object put failed", "key", key, "error", err)
		u.metrics.observeUpload(req.Site, OutcomeFailed, 0)
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	tracing.AddEvent(ctx, "object stored", attribute.String("storage.key", key))

	item := &Item{
		ID:          uuid.NewString(),
		CommunityID: req.CommunityID,
		StoragePath: key,
		PublicURL:   u.store.URL(key),
		SizeBytes:   int64(len(data)),
		MimeType:    mimeType,
		UploadedBy:  req.UserID,
		CreatedAt:   u.now(),
	}
	if err := u.repo.Insert(ctx, item); err != nil {
		u.logger.ErrorContext(ctx, "media metadata insert failed, removing object", "key", key, "error", err)
		u.compensatePut(ctx, key)
		u.metrics.observeUpload(req.Site, OutcomeFailed, 0)
		return nil, fmt.Errorf("%w: %v", ErrMetadataInsert, err)
	}
	u.metrics.observeUpload(req.Site, OutcomeStored, item.SizeBytes)

	result := &UploadResult{Item: item}
	if req.Link != nil {
		if err := req.Link(ctx, item); err != nil {
			u.logger.WarnContext(ctx, "media stored but link failed", "item_id", item.ID, "site", req.Site, "error", err)
			u.metrics.incLinkFailure(req.Site)
			tracing.AddEvent(ctx, "link failed")
			result.LinkError = err
		}
	}
	return result, nil
}

// compensatePut removes an object whose metadata row was never written. It
// runs on a context detached from request cancellation.
func (u *Uploader) compensatePut(ctx context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := u.store.Remove(ctx, key); err != nil {
		u.logger.ErrorContext(ctx, "failed to remove orphaned media object", "key", key, "error", err)
		u.metrics.incRollback(false)
		return
	}
	tracing.AddEvent(ctx, "object removed")
	u.metrics.incRollback(true)
}

// Delete removes an item's row and then its object. A failure to remove
// the object is logged and counted but not returned, since the gallery no
// longer references it. The deleted item is returned.
func (u *Uploader) Delete(ctx context.Context, userID, itemID string) (_ *Item, err error) {
	ctx, end := tracing.StartSpan(ctx, "media.delete", attribute.String("media.id", itemID))
	defer func() { end(err) }()

	if userID == "" {
		return nil, access.ErrUnauthenticated
	}

	item, err := u.repo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := u.auth.CanEditCommunity(ctx, userID, item.CommunityID); err != nil {
		return nil, err
	}

	if err := u.repo.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, err
		}
		u.logger.ErrorContext(ctx, "media metadata delete failed", "item_id", item.ID, "error", err)
		return nil, err
	}
	if err := u.store.Remove(ctx, item.StoragePath); err != nil {
		u.logger.ErrorContext(ctx, "media object remove failed", "key", item.StoragePath, "error", err)
		u.metrics.incObjectRemoveFailure()
	}
	return item, nil
}

// List returns a community's gallery.
func (u *Uploader) List(ctx context.Context, communityID string) ([]*Item, error) {
	return u.repo.ListByCommunity(ctx, communityID)
}
