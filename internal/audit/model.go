// Package audit records moderation and status changes so organizers and
// admins can trace who changed what.
package audit

import (
	"time"
)

// Entity types.
const (
	EntityCommunity = "community"
	EntityEvent     = "event"
	EntityBlock     = "block"
	EntityMedia     = "media"
)

// Actions.
const (
	ActionCreate        = "create"
	ActionUpdate        = "update"
	ActionSubmit        = "submit"
	ActionPublish       = "publish"
	ActionUnpublish     = "unpublish"
	ActionFeature       = "feature"
	ActionUnfeature     = "unfeature"
	ActionTogglePublish = "toggle_publish"
	ActionDelete        = "delete"
	ActionRestore       = "restore"
	ActionReorder       = "reorder"
	ActionUpload        = "upload"
	ActionLinkCover     = "link_cover"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Log is a single audit record. Records are never updated.
type Log struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID     string    `json:"user_id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Action     string    `json:"action"`
	Outcome    string    `json:"outcome"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName binds Log to audit_logs.
func (Log) TableName() string { return "audit_logs" }

// Entry is the input for a new record.
type Entry struct {
	UserID     string
	EntityType string
	EntityID   string
	Action     string
	Outcome    string
	RequestID  string
}
