// Package profile stores user profiles and their roles.
package profile

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Role is the authorization role of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrProfileNotFound is returned when no profile exists for the ID.
var ErrProfileNotFound = errors.New("profile not found")

// ErrInvalidRole is returned for roles other than user and admin.
var ErrInvalidRole = errors.New("invalid role")

// Profile mirrors a user known to the session provider.
type Profile struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role" gorm:"not null;default:user"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName implements gorm's tabler.
func (Profile) TableName() string { return "profiles" }

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool { return p != nil && p.Role == RoleAdmin }

// Repository persists profiles.
type Repository interface {
	// Upsert creates the profile or updates display name and role.
	Upsert(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id string) (*Profile, error)
}

func validRole(r Role) bool { return r == RoleUser || r == RoleAdmin }

// InMemoryRepository is an in-memory implementation of Repository.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewInMemoryRepository creates a new in-memory profile repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{profiles: make(map[string]Profile)}
}

func (r *InMemoryRepository) Upsert(_ context.Context, p *Profile) error {
	if p.Role == "" {
		p.Role = RoleUser
	}
	if !validRole(p.Role) {
		return ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := r.profiles[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.profiles[p.ID] = *p
	return nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

// GormRepository stores profiles in the profiles table.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a repository backed by db.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Upsert(ctx context.Context, p *Profile) error {
	if p.Role == "" {
		p.Role = RoleUser
	}
	if !validRole(p.Role) {
		return ErrInvalidRole
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"display_name", "role", "updated_at"}),
	}).Create(p).Error
}

func (r *GormRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
