package media

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// Repository stores gallery metadata.
type Repository interface {
	Insert(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id string) (*Item, error)

	// ListByCommunity returns the newest items first.
	ListByCommunity(ctx context.Context, communityID string) ([]*Item, error)

	Delete(ctx context.Context, id string) error
}

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Item
}

// NewInMemoryRepository creates a new in-memory media repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{items: make(map[string]Item)}
}

func (r *InMemoryRepository) Insert(_ context.Context, item *Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	r.items[item.ID] = *item
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (r *InMemoryRepository) ListByCommunity(_ context.Context, communityID string) ([]*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*Item{}
	for _, item := range r.items {
		if item.CommunityID == communityID {
			cp := item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

// GormRepository stores gallery metadata in Postgres.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository backed by db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Insert(ctx context.Context, item *Item) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "community_media", tracing.OpInsert)
	defer func() { end(err) }()
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *GormRepository) GetByID(ctx context.Context, id string) (*Item, error) {
	var item Item
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepository) ListByCommunity(ctx context.Context, communityID string) ([]*Item, error) {
	out := []*Item{}
	err := r.db.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("created_at DESC").Order("id").
		Find(&out).Error
	return out, err
}

func (r *GormRepository) Delete(ctx context.Context, id string) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "community_media", tracing.OpDelete)
	defer func() { end(err) }()

	res := r.db.WithContext(ctx).Delete(&Item{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}
