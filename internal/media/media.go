// Package media manages a community's image gallery: validated uploads to
// object storage paired with metadata rows.
package media

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound    = errors.New("media item not found")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrFileTooLarge    = errors.New("file size exceeds maximum allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidImage    = errors.New("file is not a readable image")
	ErrUnknownSite     = errors.New("unknown upload site")
	ErrStorage         = errors.New("failed to store file")
	ErrMetadataInsert  = errors.New("failed to save file metadata")
)

// Item is one file in a community's gallery. StoragePath is the object key.
type Item struct {
	ID          string    `json:"id" gorm:"primaryKey;type:uuid"`
	CommunityID string    `json:"community_id" gorm:"type:uuid;not null;index"`
	StoragePath string    `json:"storage_path" gorm:"not null;uniqueIndex"`
	PublicURL   string    `json:"public_url" gorm:"not null"`
	SizeBytes   int64     `json:"size_bytes" gorm:"not null"`
	MimeType    string    `json:"mime_type" gorm:"not null"`
	UploadedBy  string    `json:"uploaded_by" gorm:"type:uuid;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName implements gorm's tabler.
func (Item) TableName() string { return "community_media" }
