package community

import "errors"

// ErrInvalidTransition is returned when a status change is not allowed from
// the current status.
var ErrInvalidTransition = errors.New("status transition not allowed")

// SubmitForReview moves an organizer's draft to pending.
func SubmitForReview(current Status) (Status, error) {
	if current != StatusDraft {
		return current, ErrInvalidTransition
	}
	return StatusPending, nil
}

// Publish is the admin approval. Any status may be published.
func Publish(Status) Status { return StatusPublished }

// Unpublish returns a published community to draft.
func Unpublish(current Status) (Status, error) {
	if current != StatusPublished {
		return current, ErrInvalidTransition
	}
	return StatusDraft, nil
}

// ToggleEventStatus flips an event between published and unpublished.
func ToggleEventStatus(current EventStatus) EventStatus {
	if current == EventPublished {
		return EventUnpublished
	}
	return EventPublished
}
