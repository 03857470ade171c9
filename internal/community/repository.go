package community

import (
	"context"
	"sort"
	"sync"
	"time"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ListFilter selects communities. Zero values mean "any".
type ListFilter struct {
	Status     Status
	OwnerID    string
	CategoryID string
	Featured   *bool

	// DeletedOnly lists only soft-deleted rows; IncludeDeleted lists both.
	// Default listings exclude deleted rows.
	DeletedOnly    bool
	IncludeDeleted bool

	Limit  int
	Offset int
}

// normalized clamps Limit and Offset.
func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func (f ListFilter) matches(c *Community) bool {
	switch {
	case f.DeletedOnly && !c.IsDeleted():
		return false
	case !f.DeletedOnly && !f.IncludeDeleted && c.IsDeleted():
		return false
	case f.Status != "" && c.Status != f.Status:
		return false
	case f.OwnerID != "" && c.OwnerID != f.OwnerID:
		return false
	case f.CategoryID != "" && (c.CategoryID == nil || *c.CategoryID != f.CategoryID):
		return false
	case f.Featured != nil && c.IsFeatured != *f.Featured:
		return false
	}
	return true
}

// CommunityRepository defines community data operations.
type CommunityRepository interface {
	// Insert stores a new community. Returns ErrDuplicateSlug on slug collision.
	Insert(ctx context.Context, c *Community) error

	// Update replaces the editable fields of an existing community.
	Update(ctx context.Context, c *Community) error

	// GetByID returns the community including soft-deleted ones.
	GetByID(ctx context.Context, id string) (*Community, error)

	// GetBySlug returns a non-deleted community by slug.
	GetBySlug(ctx context.Context, slug string) (*Community, error)

	// List returns communities ordered featured first, then newest.
	List(ctx context.Context, filter ListFilter) ([]*Community, error)

	// Count returns the number of communities matching filter, ignoring Limit and Offset.
	Count(ctx context.Context, filter ListFilter) (int64, error)

	SetStatus(ctx context.Context, id string, status Status) error
	SetFeatured(ctx context.Context, id string, featured bool) error
	SetCover(ctx context.Context, id, url string) error

	// SoftDelete marks the community deleted at the given time.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Restore clears the deletion marker.
	Restore(ctx context.Context, id string) error
}

// EventFilter selects events of one community.
type EventFilter struct {
	PublishedOnly  bool
	IncludeDeleted bool
}

// EventRepository defines event data operations.
type EventRepository interface {
	Insert(ctx context.Context, e *Event) error
	Update(ctx context.Context, e *Event) error

	// GetByID returns the event including soft-deleted ones.
	GetByID(ctx context.Context, id string) (*Event, error)

	// ListByCommunity returns events ordered by start time.
	ListByCommunity(ctx context.Context, communityID string, filter EventFilter) ([]*Event, error)

	SetStatus(ctx context.Context, id string, status EventStatus) error
	SetCover(ctx context.Context, id, url string) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	Restore(ctx context.Context, id string) error
}

// CategoryRepository reads the category catalogue.
type CategoryRepository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
}

func copyCommunity(c *Community) *Community {
	cp := *c
	if c.CategoryID != nil {
		id := *c.CategoryID
		cp.CategoryID = &id
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

func copyEvent(e *Event) *Event {
	cp := *e
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

// InMemoryCommunityRepository is an in-memory implementation of CommunityRepository.
// Used for testing and development.
type InMemoryCommunityRepository struct {
	mu          sync.RWMutex
	communities map[string]*Community
	slugs       map[string]string
}

// NewInMemoryCommunityRepository creates a new in-memory community repository.
func NewInMemoryCommunityRepository() *InMemoryCommunityRepository {
	return &InMemoryCommunityRepository{
		communities: make(map[string]*Community),
		slugs:       make(map[string]string),
	}
}

func (r *InMemoryCommunityRepository) Insert(_ context.Context, c *Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.slugs[c.Slug]; taken {
		return ErrDuplicateSlug
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.Status == "" {
		c.Status = StatusDraft
	}
	r.communities[c.ID] = copyCommunity(c)
	r.slugs[c.Slug] = c.ID
	return nil
}

func (r *InMemoryCommunityRepository) Update(_ context.Context, c *Community) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.communities[c.ID]
	if !ok {
		return ErrCommunityNotFound
	}
	if owner, taken := r.slugs[c.Slug]; taken && owner != c.ID {
		return ErrDuplicateSlug
	}

	delete(r.slugs, existing.Slug)
	r.slugs[c.Slug] = c.ID

	existing.Name = c.Name
	existing.Slug = c.Slug
	existing.Description = c.Description
	existing.CategoryID = c.CategoryID
	existing.LogoURL = c.LogoURL
	existing.SocialLinks = c.SocialLinks
	existing.UpdatedAt = time.Now().UTC()
	*c = *copyCommunity(existing)
	return nil
}

func (r *InMemoryCommunityRepository) GetByID(_ context.Context, id string) (*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.communities[id]
	if !ok {
		return nil, ErrCommunityNotFound
	}
	return copyCommunity(c), nil
}

func (r *InMemoryCommunityRepository) GetBySlug(_ context.Context, slug string) (*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.slugs[slug]
	if !ok || r.communities[id].IsDeleted() {
		return nil, ErrCommunityNotFound
	}
	return copyCommunity(r.communities[id]), nil
}

func (r *InMemoryCommunityRepository) filtered(filter ListFilter) []*Community {
	var out []*Community
	for _, c := range r.communities {
		if filter.matches(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsFeatured != out[j].IsFeatured {
			return out[i].IsFeatured
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *InMemoryCommunityRepository) List(_ context.Context, filter ListFilter) ([]*Community, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	filter = filter.normalized()
	all := r.filtered(filter)
	if filter.Offset >= len(all) {
		return []*Community{}, nil
	}
	page := all[filter.Offset:min(len(all), filter.Offset+filter.Limit)]

	out := make([]*Community, len(page))
	for i, c := range page {
		out[i] = copyCommunity(c)
	}
	return out, nil
}

func (r *InMemoryCommunityRepository) Count(_ context.Context, filter ListFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.filtered(filter))), nil
}

func (r *InMemoryCommunityRepository) mutate(id string, fn func(c *Community)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.communities[id]
	if !ok {
		return ErrCommunityNotFound
	}
	fn(c)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryCommunityRepository) SetStatus(_ context.Context, id string, status Status) error {
	return r.mutate(id, func(c *Community) { c.Status = status })
}

func (r *InMemoryCommunityRepository) SetFeatured(_ context.Context, id string, featured bool) error {
	return r.mutate(id, func(c *Community) { c.IsFeatured = featured })
}

func (r *InMemoryCommunityRepository) SetCover(_ context.Context, id, url string) error {
	return r.mutate(id, func(c *Community) { c.CoverURL = url })
}

func (r *InMemoryCommunityRepository) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(c *Community) {
		t := at.UTC()
		c.DeletedAt = &t
	})
}

func (r *InMemoryCommunityRepository) Restore(_ context.Context, id string) error {
	return r.mutate(id, func(c *Community) { c.DeletedAt = nil })
}

// InMemoryEventRepository is an in-memory implementation of EventRepository.
type InMemoryEventRepository struct {
	mu     sync.RWMutex
	events map[string]*Event
}

// NewInMemoryEventRepository creates a new in-memory event repository.
func NewInMemoryEventRepository() *InMemoryEventRepository {
	return &InMemoryEventRepository{events: make(map[string]*Event)}
}

func (r *InMemoryEventRepository) Insert(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	if e.Status == "" {
		e.Status = EventUnpublished
	}
	r.events[e.ID] = copyEvent(e)
	return nil
}

func (r *InMemoryEventRepository) Update(_ context.Context, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.events[e.ID]
	if !ok {
		return ErrEventNotFound
	}
	existing.Title = e.Title
	existing.Description = e.Description
	existing.Location = e.Location
	existing.StartsAt = e.StartsAt
	existing.EndsAt = e.EndsAt
	existing.UpdatedAt = time.Now().UTC()
	*e = *copyEvent(existing)
	return nil
}

func (r *InMemoryEventRepository) GetByID(_ context.Context, id string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (r *InMemoryEventRepository) ListByCommunity(_ context.Context, communityID string, filter EventFilter) ([]*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Event{}
	for _, e := range r.events {
		if e.CommunityID != communityID {
			continue
		}
		if e.IsDeleted() && !filter.IncludeDeleted {
			continue
		}
		if filter.PublishedOnly && e.Status != EventPublished {
			continue
		}
		out = append(out, copyEvent(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InMemoryEventRepository) mutate(id string, fn func(e *Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return ErrEventNotFound
	}
	fn(e)
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *InMemoryEventRepository) SetStatus(_ context.Context, id string, status EventStatus) error {
	return r.mutate(id, func(e *Event) { e.Status = status })
}

func (r *InMemoryEventRepository) SetCover(_ context.Context, id, url string) error {
	return r.mutate(id, func(e *Event) { e.CoverURL = url })
}

func (r *InMemoryEventRepository) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(e *Event) {
		t := at.UTC()
		e.DeletedAt = &t
	})
}

func (r *InMemoryEventRepository) Restore(_ context.Context, id string) error {
	return r.mutate(id, func(e *Event) { e.DeletedAt = nil })
}

// InMemoryCategoryRepository serves a fixed category list.
type InMemoryCategoryRepository struct {
	categories []Category
}

// NewInMemoryCategoryRepository creates a repository over categories.
func NewInMemoryCategoryRepository(categories ...Category) *InMemoryCategoryRepository {
	cp := append([]Category(nil), categories...)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].SortOrder < cp[j].SortOrder })
	return &InMemoryCategoryRepository{categories: cp}
}

func (r *InMemoryCategoryRepository) List(context.Context) ([]Category, error) {
	return append([]Category{}, r.categories...), nil
}

func (r *InMemoryCategoryRepository) GetByID(_ context.Context, id string) (*Category, error) {
	for _, c := range r.categories {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrCategoryNotFound
}
