package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

var (
	// ErrNilRepository is returned when a nil repository is passed to Record.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidEntityType is returned for an empty or unknown entity type.
	ErrInvalidEntityType = errors.New("invalid audit entity type")
	// ErrInvalidEntityID is returned when the entity ID is empty.
	ErrInvalidEntityID = errors.New("entity ID cannot be empty")
	// ErrInvalidAction is returned for an empty or unknown action.
	ErrInvalidAction = errors.New("invalid audit action")
)

// ValidEntityTypes defines the allowed entity types.
var ValidEntityTypes = map[string]bool{
	EntityCommunity: true,
	EntityEvent:     true,
	EntityBlock:     true,
	EntityMedia:     true,
}

// ValidActions defines the allowed actions.
var ValidActions = map[string]bool{
	ActionCreate:        true,
	ActionUpdate:        true,
	ActionSubmit:        true,
	ActionPublish:       true,
	ActionUnpublish:     true,
	ActionFeature:       true,
	ActionUnfeature:     true,
	ActionTogglePublish: true,
	ActionDelete:        true,
	ActionRestore:       true,
	ActionReorder:       true,
	ActionUpload:        true,
	ActionLinkCover:     true,
}

func validateEntry(entityType, entityID, action string) error {
	if !ValidEntityTypes[entityType] {
		return ErrInvalidEntityType
	}
	if entityID == "" {
		return ErrInvalidEntityID
	}
	if !ValidActions[action] {
		return ErrInvalidAction
	}
	return nil
}

// Record appends an entry attributed to the user and request found in ctx.
func Record(ctx context.Context, repo Repository, entityType, entityID, action string, outcome error) (*Log, error) {
	if repo == nil {
		return nil, ErrNilRepository
	}
	if err := validateEntry(entityType, entityID, action); err != nil {
		return nil, err
	}

	result := OutcomeSuccess
	if outcome != nil {
		result = OutcomeFailure
	}

	return repo.Append(ctx, Entry{
		UserID:     middleware.GetUserID(ctx),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Outcome:    result,
		RequestID:  middleware.GetRequestID(ctx),
	})
}

// Recorder writes audit records without failing the caller. A store
// failure is logged and swallowed since the action itself already happened.
type Recorder struct {
	repo   Repository
	logger *slog.Logger
}

// NewRecorder returns a Recorder. A nil repo makes every call a no-op.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Record appends an entry; see the package-level Record.
func (r *Recorder) Record(ctx context.Context, entityType, entityID, action string, outcome error) {
	if r == nil || r.repo == nil {
		return
	}
	if _, err := Record(ctx, r.repo, entityType, entityID, action, outcome); err != nil {
		r.logger.ErrorContext(ctx, "failed to write audit record",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err)
	}
}
