package community

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// GormCommunityRepository stores communities in Postgres.
type GormCommunityRepository struct {
	db *gorm.DB
}

// NewGormCommunityRepository creates a repository backed by db.
func NewGormCommunityRepository(db *gorm.DB) *GormCommunityRepository {
	return &GormCommunityRepository{db: db}
}

func translateCommunityErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateSlug
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrCommunityNotFound
	}
	return err
}

func (r *GormCommunityRepository) Insert(ctx context.Context, c *Community) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "communities", tracing.OpInsert)
	defer func() { end(err) }()

	if c.Status == "" {
		c.Status = StatusDraft
	}
	return translateCommunityErr(r.db.WithContext(ctx).Create(c).Error)
}

func (r *GormCommunityRepository) Update(ctx context.Context, c *Community) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "communities", tracing.OpUpdate)
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Model(&Community{}).Where("id = ?", c.ID).Updates(map[string]any{
		"name":         c.Name,
		"slug":         c.Slug,
		"description":  c.Description,
		"category_id":  c.CategoryID,
		"logo_url":     c.LogoURL,
		"social_links": c.SocialLinks,
		"updated_at":   time.Now().UTC(),
	})
	if res.Error != nil {
		return translateCommunityErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCommunityNotFound
	}

	fresh, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *fresh
	return nil
}

func (r *GormCommunityRepository) GetByID(ctx context.Context, id string) (*Community, error) {
	var c Community
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translateCommunityErr(err)
	}
	return &c, nil
}

func (r *GormCommunityRepository) GetBySlug(ctx context.Context, slug string) (*Community, error) {
	var c Community
	err := r.db.WithContext(ctx).Where("slug = ? AND deleted_at IS NULL", slug).Take(&c).Error
	if err != nil {
		return nil, translateCommunityErr(err)
	}
	return &c, nil
}

func (r *GormCommunityRepository) scoped(ctx context.Context, filter ListFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&Community{})
	switch {
	case filter.DeletedOnly:
		q = q.Where("deleted_at IS NOT NULL")
	case !filter.IncludeDeleted:
		q = q.Where("deleted_at IS NULL")
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Featured != nil {
		q = q.Where("is_featured = ?", *filter.Featured)
	}
	return q
}

func (r *GormCommunityRepository) List(ctx context.Context, filter ListFilter) (_ []*Community, err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "communities", tracing.OpQuery)
	defer func() { end(err) }()

	filter = filter.normalized()
	out := []*Community{}
	err = r.scoped(ctx, filter).
		Order("is_featured DESC").Order("created_at DESC").Order("id").
		Limit(filter.Limit).Offset(filter.Offset).
		Find(&out).Error
	return out, err
}

func (r *GormCommunityRepository) Count(ctx context.Context, filter ListFilter) (int64, error) {
	var n int64
	err := r.scoped(ctx, filter).Count(&n).Error
	return n, err
}

func (r *GormCommunityRepository) set(ctx context.Context, id string, values map[string]any) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "communities", tracing.OpUpdate)
	defer func() { end(err) }()

	values["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Community{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCommunityNotFound
	}
	return nil
}

func (r *GormCommunityRepository) SetStatus(ctx context.Context, id string, status Status) error {
	return r.set(ctx, id, map[string]any{"status": status})
}

func (r *GormCommunityRepository) SetFeatured(ctx context.Context, id string, featured bool) error {
	return r.set(ctx, id, map[string]any{"is_featured": featured})
}

func (r *GormCommunityRepository) SetCover(ctx context.Context, id, url string) error {
	return r.set(ctx, id, map[string]any{"cover_url": url})
}

func (r *GormCommunityRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, map[string]any{"deleted_at": at.UTC()})
}

func (r *GormCommunityRepository) Restore(ctx context.Context, id string) error {
	return r.set(ctx, id, map[string]any{"deleted_at": gorm.Expr("NULL")})
}

// GormEventRepository stores events in Postgres.
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a repository backed by db.
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func translateEventErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEventNotFound
	}
	return err
}

func (r *GormEventRepository) Insert(ctx context.Context, e *Event) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "events", tracing.OpInsert)
	defer func() { end(err) }()

	if e.Status == "" {
		e.Status = EventUnpublished
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormEventRepository) Update(ctx context.Context, e *Event) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "events", tracing.OpUpdate)
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Model(&Event{}).Where("id = ?", e.ID).Updates(map[string]any{
		"title":       e.Title,
		"description": e.Description,
		"location":    e.Location,
		"starts_at":   e.StartsAt,
		"ends_at":     e.EndsAt,
		"updated_at":  time.Now().UTC(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}

	fresh, err := r.GetByID(ctx, e.ID)
	if err != nil {
		return err
	}
	*e = *fresh
	return nil
}

func (r *GormEventRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	var e Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&e).Error; err != nil {
		return nil, translateEventErr(err)
	}
	return &e, nil
}

func (r *GormEventRepository) ListByCommunity(ctx context.Context, communityID string, filter EventFilter) ([]*Event, error) {
	q := r.db.WithContext(ctx).Where("community_id = ?", communityID)
	if !filter.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if filter.PublishedOnly {
		q = q.Where("status = ?", EventPublished)
	}
	out := []*Event{}
	err := q.Order("starts_at").Order("id").Find(&out).Error
	return out, err
}

func (r *GormEventRepository) set(ctx context.Context, id string, values map[string]any) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "events", tracing.OpUpdate)
	defer func() { end(err) }()

	values["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (r *GormEventRepository) SetStatus(ctx context.Context, id string, status EventStatus) error {
	return r.set(ctx, id, map[string]any{"status": status})
}

func (r *GormEventRepository) SetCover(ctx context.Context, id, url string) error {
	return r.set(ctx, id, map[string]any{"cover_url": url})
}

func (r *GormEventRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.set(ctx, id, map[string]any{"deleted_at": at.UTC()})
}

func (r *GormEventRepository) Restore(ctx context.Context, id string) error {
	return r.set(ctx, id, map[string]any{"deleted_at": gorm.Expr("NULL")})
}

// GormCategoryRepository reads categories seeded by migration.
type GormCategoryRepository struct {
	db *gorm.DB
}

// NewGormCategoryRepository creates a repository backed by db.
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{db: db}
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]Category, error) {
	out := []Category{}
	err := r.db.WithContext(ctx).Order("sort_order").Order("name").Find(&out).Error
	return out, err
}

func (r *GormCategoryRepository) GetByID(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
