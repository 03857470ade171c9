// Package community provides models and repositories for communities,
// their events and the category catalogue.
package community

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Status is the publication state of a community.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
)

// Valid reports whether s is a known community status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished:
		return true
	}
	return false
}

// EventStatus is the visibility of an event.
type EventStatus string

const (
	EventPublished   EventStatus = "published"
	EventUnpublished EventStatus = "unpublished"
)

// Sentinel errors for community data operations.
var (
	ErrCommunityNotFound = errors.New("community not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrDuplicateSlug     = errors.New("slug already in use")
)

// SocialLinks are the external profiles shown on a community page.
// Stored as a JSON object column.
type SocialLinks struct {
	Website   string `json:"website,omitempty"`
	Telegram  string `json:"telegram,omitempty"`
	VK        string `json:"vk,omitempty"`
	Instagram string `json:"instagram,omitempty"`
	YouTube   string `json:"youtube,omitempty"`
}

// Value implements driver.Valuer.
func (l SocialLinks) Value() (driver.Value, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *SocialLinks) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = SocialLinks{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("social links: unsupported type %T", src)
	}
	return json.Unmarshal(data, l)
}

// fields returns the links keyed by network for validation and iteration.
func (l SocialLinks) fields() map[string]string {
	return map[string]string{
		"website":   l.Website,
		"telegram":  l.Telegram,
		"vk":        l.VK,
		"instagram": l.Instagram,
		"youtube":   l.YouTube,
	}
}

// Community is an organizer's page that groups events, media and content blocks.
type Community struct {
	ID          string      `json:"id" gorm:"primaryKey;type:uuid"`
	OwnerID     string      `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name        string      `json:"name" gorm:"not null"`
	Slug        string      `json:"slug" gorm:"not null;uniqueIndex"`
	Description string      `json:"description"`
	CategoryID  *string     `json:"category_id,omitempty" gorm:"type:uuid"`
	CoverURL    string      `json:"cover_url"`
	LogoURL     string      `json:"logo_url"`
	SocialLinks SocialLinks `json:"social_links" gorm:"type:jsonb"`
	Status      Status      `json:"status" gorm:"not null;default:draft"`
	IsFeatured  bool        `json:"is_featured" gorm:"not null;default:false"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// TableName implements gorm's tabler.
func (Community) TableName() string { return "communities" }

// IsDeleted reports whether the community has been soft-deleted.
func (c *Community) IsDeleted() bool { return c.DeletedAt != nil }

// IsPublic reports whether anonymous visitors may see the community.
func (c *Community) IsPublic() bool {
	return !c.IsDeleted() && c.Status == StatusPublished
}

// Event belongs to exactly one community.
type Event struct {
	ID          string      `json:"id" gorm:"primaryKey;type:uuid"`
	CommunityID string      `json:"community_id" gorm:"type:uuid;not null;index"`
	Title       string      `json:"title" gorm:"not null"`
	Description string      `json:"description"`
	Location    string      `json:"location"`
	StartsAt    time.Time   `json:"starts_at" gorm:"not null"`
	EndsAt      time.Time   `json:"ends_at" gorm:"not null"`
	CoverURL    string      `json:"cover_url"`
	Status      EventStatus `json:"status" gorm:"not null;default:unpublished"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// TableName implements gorm's tabler.
func (Event) TableName() string { return "events" }

// IsDeleted reports whether the event has been soft-deleted.
func (e *Event) IsDeleted() bool { return e.DeletedAt != nil }

// IsPublic reports whether the event is visible on public pages.
func (e *Event) IsPublic() bool {
	return !e.IsDeleted() && e.Status == EventPublished
}

// Category groups communities in the catalogue.
type Category struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	Slug      string `json:"slug" gorm:"uniqueIndex"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

// TableName implements gorm's tabler.
func (Category) TableName() string { return "categories" }
