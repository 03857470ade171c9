package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

// FileField is the multipart field carrying the upload.
const FileField = "file"

// multipartOverhead is allowed on top of a site's ceiling for form headers.
const multipartOverhead = 1 << 20

// maxMultipartMemory is the part of a form kept in memory while parsing.
const maxMultipartMemory = 8 << 20

// msgCoverNotUpdated is shown when the file reached the gallery but the
// cover could not be set.
const msgCoverNotUpdated = "The file was uploaded to the gallery, but the cover was not updated"

// UploadResponse describes a stored upload. CoverUpdated is present only for
// cover uploads.
type UploadResponse struct {
	Item         *media.Item `json:"item"`
	CoverUpdated *bool       `json:"cover_updated,omitempty"`
	Warning      string      `json:"warning,omitempty"`
}

// MediaHandlers holds dependencies for gallery and cover upload handlers.
type MediaHandlers struct {
	uploader    *media.Uploader
	policies    media.Policies
	communities community.CommunityRepository
	events      community.EventRepository
	access      *access.Checker
	audit       *audit.Recorder
	pages       pages
}

// NewMediaHandlers creates a new MediaHandlers instance.
func NewMediaHandlers(d Deps) *MediaHandlers {
	return &MediaHandlers{
		uploader:    d.Uploader,
		policies:    d.Policies,
		communities: d.Communities,
		events:      d.Events,
		access:      d.Access,
		audit:       d.Audit,
		pages:       pages{cache: d.PageCache, events: d.Events},
	}
}

// List handles GET /communities/{id}/media.
func (h *MediaHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "list media", err)
		return
	}
	items, err := h.uploader.List(ctx, comm.ID)
	if err != nil {
		writeServiceError(w, r, "list media", err)
		return
	}
	if items == nil {
		items = []*media.Item{}
	}
	WriteJSON(w, ctx, http.StatusOK, items)
}

// UploadGallery handles POST /communities/{id}/media. The optional site query
// parameter selects event_design limits for event artwork.
func (h *MediaHandlers) UploadGallery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "upload media", err)
		return
	}
	if !writable(w, r, comm, nil) {
		return
	}

	site := media.SiteCommunityMedia
	switch r.URL.Query().Get("site") {
	case "", string(media.SiteCommunityMedia):
	case string(media.SiteEventDesign):
		site = media.SiteEventDesign
	default:
		writeServiceError(w, r, "upload media", media.ErrUnknownSite)
		return
	}

	h.upload(w, r, comm.ID, site, nil, nil)
}

// UploadAdmin handles POST /admin/media/{communityID}.
func (h *MediaHandlers) UploadAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "communityID"))
	if err != nil {
		writeServiceError(w, r, "admin upload", err)
		return
	}
	if !writable(w, r, comm, nil) {
		return
	}
	h.upload(w, r, comm.ID, media.SiteAdmin, nil, nil)
}

// UploadEventCover handles POST /events/{id}/cover: a gallery upload that
// then becomes the event's cover.
func (h *MediaHandlers) UploadEventCover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, comm, err := h.access.CanEditEvent(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "upload event cover", err)
		return
	}
	if !writable(w, r, comm, ev) {
		return
	}

	link := func(ctx context.Context, item *media.Item) error {
		err := h.events.SetCover(ctx, ev.ID, item.PublicURL)
		h.audit.Record(ctx, audit.EntityEvent, ev.ID, audit.ActionLinkCover, err)
		return err
	}
	h.upload(w, r, comm.ID, media.SiteEventCover, link, func(ctx context.Context) {
		h.pages.event(ctx, ev, comm)
	})
}

// UploadCommunityCover handles POST /communities/{id}/cover.
func (h *MediaHandlers) UploadCommunityCover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "upload community cover", err)
		return
	}
	if !writable(w, r, comm, nil) {
		return
	}

	link := func(ctx context.Context, item *media.Item) error {
		err := h.communities.SetCover(ctx, comm.ID, item.PublicURL)
		h.audit.Record(ctx, audit.EntityCommunity, comm.ID, audit.ActionLinkCover, err)
		return err
	}
	h.upload(w, r, comm.ID, media.SiteCommunityCover, link, func(ctx context.Context) {
		h.pages.community(ctx, comm)
	})
}

// writable rejects uploads to a soft-deleted community or event with 409
// before the body is read. ev may be nil.
func writable(w http.ResponseWriter, r *http.Request, comm *community.Community, ev *community.Event) bool {
	switch {
	case comm.IsDeleted():
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeConflict, "Restore the community before uploading to it")
	case ev != nil && ev.IsDeleted():
		WriteError(w, r.Context(), http.StatusConflict, ErrCodeConflict, "Restore the event before uploading to it")
	default:
		return true
	}
	return false
}

// upload reads the file and runs the upload saga. Callers have already
// checked edit rights; the Uploader checks them again against the store.
// linked runs when link is set and succeeded.
func (h *MediaHandlers) upload(w http.ResponseWriter, r *http.Request, communityID string, site media.Site, link media.LinkFunc, linked func(context.Context)) {
	ctx := r.Context()
	data, mimeType, err := h.readFile(w, r, site)
	if err != nil {
		if errors.Is(err, errInvalidBody) {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Expected a multipart form with a file field")
			return
		}
		writeServiceError(w, r, "read upload", err)
		return
	}

	result, err := h.uploader.Upload(ctx, media.UploadRequest{
		UserID:      middleware.GetUserID(ctx),
		CommunityID: communityID,
		Site:        site,
		MimeType:    mimeType,
		Data:        data,
		Link:        link,
	})
	if err != nil {
		h.audit.Record(ctx, audit.EntityCommunity, communityID, audit.ActionUpload, err)
		writeServiceError(w, r, "upload media", err)
		return
	}
	h.audit.Record(ctx, audit.EntityMedia, result.Item.ID, audit.ActionUpload, nil)

	resp := UploadResponse{Item: result.Item}
	if link != nil {
		updated := result.Linked()
		resp.CoverUpdated = &updated
		if updated {
			linked(ctx)
		} else {
			resp.Warning = msgCoverNotUpdated
		}
	}
	WriteJSON(w, ctx, http.StatusCreated, resp)
}

// readFile returns the bytes and declared MIME type of the form's file. The
// body is capped a little above the site's ceiling so oversized uploads are
// cut off early; the exact limit is enforced by the site policy.
func (h *MediaHandlers) readFile(w http.ResponseWriter, r *http.Request, site media.Site) ([]byte, string, error) {
	policy, ok := h.policies[site]
	if !ok {
		return nil, "", media.ErrUnknownSite
	}
	r.Body = http.MaxBytesReader(w, r.Body, policy.MaxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", media.ErrFileTooLarge
		}
		return nil, "", errInvalidBody
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		return nil, "", errInvalidBody
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, policy.MaxBytes+1))
	if err != nil {
		return nil, "", errInvalidBody
	}
	return data, header.Header.Get("Content-Type"), nil
}

// Delete handles DELETE /media/{id}: the row is removed, then the object.
func (h *MediaHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := h.uploader.Delete(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "delete media", err)
		return
	}
	h.audit.Record(ctx, audit.EntityMedia, item.ID, audit.ActionDelete, nil)

	if comm, err := h.communities.GetByID(ctx, item.CommunityID); err == nil {
		h.pages.community(ctx, comm)
	}
	WriteJSON(w, ctx, http.StatusOK, item)
}
