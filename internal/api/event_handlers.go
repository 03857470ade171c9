package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

// CreateEventRequest represents the request body for creating an event.
type CreateEventRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description,omitempty" validate:"max=10000"`
	Location    string    `json:"location,omitempty" validate:"max=300"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

// UpdateEventRequest carries the fields to change; nil fields are kept.
type UpdateEventRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty" validate:"omitempty,max=10000"`
	Location    *string    `json:"location,omitempty" validate:"omitempty,max=300"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

// EventPage is the public rendering of an event.
type EventPage struct {
	Event     *community.Event     `json:"event"`
	Community *community.Community `json:"community"`
	Blocks    []*content.Block     `json:"blocks"`
}

// EventHandlers holds dependencies for event HTTP handlers.
type EventHandlers struct {
	communities community.CommunityRepository
	events      community.EventRepository
	blocks      content.Repository
	access      *access.Checker
	audit       *audit.Recorder
	pages       pages
	now         func() time.Time
}

// NewEventHandlers creates a new EventHandlers instance.
func NewEventHandlers(d Deps) *EventHandlers {
	return &EventHandlers{
		communities: d.Communities,
		events:      d.Events,
		blocks:      d.Blocks,
		access:      d.Access,
		audit:       d.Audit,
		pages:       pages{cache: d.PageCache, events: d.Events},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetPage handles GET /events/{id}. An event is public when it and its
// community are published; otherwise only editors see it.
func (h *EventHandlers) GetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, err := h.events.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "get event", err)
		return
	}
	comm, err := h.communities.GetByID(ctx, ev.CommunityID)
	if err != nil {
		writeServiceError(w, r, "get community", err)
		return
	}

	if !ev.IsPublic() || !comm.IsPublic() {
		if _, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), comm.ID); err != nil {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Not found")
			return
		}
	}

	blocks, err := h.blocks.ListByOwner(ctx, content.Owner{Type: content.OwnerEvent, ID: ev.ID})
	if err != nil {
		writeServiceError(w, r, "list blocks", err)
		return
	}
	if blocks == nil {
		blocks = []*content.Block{}
	}
	WriteJSON(w, ctx, http.StatusOK, EventPage{Event: ev, Community: comm, Blocks: blocks})
}

// Create handles POST /communities/{id}/events. New events are unpublished.
func (h *EventHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "create event", err)
		return
	}
	if comm.IsDeleted() {
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Restore the community before adding events")
		return
	}

	var req CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	ev := &community.Event{
		ID:          uuid.NewString(),
		CommunityID: comm.ID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Location:    strings.TrimSpace(req.Location),
		StartsAt:    req.StartsAt.UTC(),
		EndsAt:      req.EndsAt.UTC(),
		Status:      community.EventUnpublished,
	}
	if err := ev.Validate(); err != nil {
		writeServiceError(w, r, "create event", err)
		return
	}

	err = h.events.Insert(ctx, ev)
	h.audit.Record(ctx, audit.EntityEvent, ev.ID, audit.ActionCreate, err)
	if err != nil {
		writeServiceError(w, r, "create event", err)
		return
	}
	WriteJSON(w, ctx, http.StatusCreated, ev)
}

// Update handles PATCH /events/{id}.
func (h *EventHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, comm, err := h.access.CanEditEvent(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "update event", err)
		return
	}
	if ev.IsDeleted() {
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Restore the event before editing it")
		return
	}

	var req UpdateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	if req.Title != nil {
		ev.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		ev.Description = strings.TrimSpace(*req.Description)
	}
	if req.Location != nil {
		ev.Location = strings.TrimSpace(*req.Location)
	}
	if req.StartsAt != nil {
		ev.StartsAt = req.StartsAt.UTC()
	}
	if req.EndsAt != nil {
		ev.EndsAt = req.EndsAt.UTC()
	}
	if err := ev.Validate(); err != nil {
		writeServiceError(w, r, "update event", err)
		return
	}

	err = h.events.Update(ctx, ev)
	h.audit.Record(ctx, audit.EntityEvent, ev.ID, audit.ActionUpdate, err)
	if err != nil {
		writeServiceError(w, r, "update event", err)
		return
	}
	h.pages.event(ctx, ev, comm)
	WriteJSON(w, ctx, http.StatusOK, ev)
}

// TogglePublish handles POST /events/{id}/toggle-publish. The next status is
// computed from the stored one; concurrent toggles resolve last write wins.
func (h *EventHandlers) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ev, comm, err := h.access.CanEditEvent(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "toggle event", err)
		return
	}
	if ev.IsDeleted() {
		writeServiceError(w, r, "toggle event", community.ErrInvalidTransition)
		return
	}

	next := community.ToggleEventStatus(ev.Status)
	err = h.events.SetStatus(ctx, ev.ID, next)
	h.audit.Record(ctx, audit.EntityEvent, ev.ID, audit.ActionTogglePublish, err)
	if err != nil {
		writeServiceError(w, r, "toggle event", err)
		return
	}
	ev.Status = next
	h.pages.event(ctx, ev, comm)
	WriteJSON(w, ctx, http.StatusOK, ev)
}

// Delete handles DELETE /events/{id} (soft delete).
func (h *EventHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

// Restore handles POST /events/{id}/restore.
func (h *EventHandlers) Restore(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *EventHandlers) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	ctx := r.Context()
	ev, comm, err := h.access.CanEditEvent(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "delete event", err)
		return
	}

	action := audit.ActionRestore
	if deleted {
		action = audit.ActionDelete
		at := h.now()
		err = h.events.SoftDelete(ctx, ev.ID, at)
		ev.DeletedAt = &at
	} else {
		err = h.events.Restore(ctx, ev.ID)
		ev.DeletedAt = nil
	}
	h.audit.Record(ctx, audit.EntityEvent, ev.ID, action, err)
	if err != nil {
		writeServiceError(w, r, action+" event", err)
		return
	}
	h.pages.event(ctx, ev, comm)
	WriteJSON(w, ctx, http.StatusOK, ev)
}
