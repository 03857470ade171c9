package api

import (
	"errors"
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

// CreateCommunityRequest represents the request body for creating a community.
// An empty slug is derived from the name.
type CreateCommunityRequest struct {
	Name        string                `json:"name" validate:"required"`
	Slug        string                `json:"slug,omitempty"`
	Description string                `json:"description,omitempty" validate:"max=5000"`
	CategoryID  *string               `json:"category_id,omitempty" validate:"omitempty,uuid"`
	LogoURL     string                `json:"logo_url,omitempty" validate:"omitempty,http_url"`
	SocialLinks community.SocialLinks `json:"social_links"`
}

// UpdateCommunityRequest carries the fields to change; nil fields are kept.
type UpdateCommunityRequest struct {
	Name        *string                `json:"name,omitempty"`
	Slug        *string                `json:"slug,omitempty"`
	Description *string                `json:"description,omitempty" validate:"omitempty,max=5000"`
	CategoryID  *string                `json:"category_id,omitempty" validate:"omitempty,uuid"`
	LogoURL     *string                `json:"logo_url,omitempty" validate:"omitempty,http_url"`
	SocialLinks *community.SocialLinks `json:"social_links,omitempty"`
}

// CommunityPage is the public rendering of a community.
type CommunityPage struct {
	Community *community.Community `json:"community"`
	Events    []*community.Event   `json:"events"`
	Blocks    []*content.Block     `json:"blocks"`
}

// CommunityHandlers holds dependencies for community HTTP handlers.
type CommunityHandlers struct {
	communities community.CommunityRepository
	events      community.EventRepository
	categories  community.CategoryRepository
	blocks      content.Repository
	access      *access.Checker
	audit       *audit.Recorder
	pages       pages
	now         func() time.Time
}

// NewCommunityHandlers creates a new CommunityHandlers instance.
func NewCommunityHandlers(d Deps) *CommunityHandlers {
	return &CommunityHandlers{
		communities: d.Communities,
		events:      d.Events,
		categories:  d.Categories,
		blocks:      d.Blocks,
		access:      d.Access,
		audit:       d.Audit,
		pages:       pages{cache: d.PageCache, events: d.Events},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListPublic handles GET /communities. Only published communities are listed,
// featured first. Optional filters: category, featured.
func (h *CommunityHandlers) ListPublic(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(r)
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit and offset must be non-negative integers")
		return
	}
	filter := community.ListFilter{
		Status:     community.StatusPublished,
		CategoryID: r.URL.Query().Get("category"),
		Limit:      limit,
		Offset:     offset,
	}
	if v := r.URL.Query().Get("featured"); v != "" {
		featured := v == "true" || v == "1"
		filter.Featured = &featured
	}
	h.writeList(w, r, filter)
}

// ListMine handles GET /me/communities, including drafts and deleted ones.
func (h *CommunityHandlers) ListMine(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(r)
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit and offset must be non-negative integers")
		return
	}
	h.writeList(w, r, community.ListFilter{
		OwnerID:        middleware.GetUserID(r.Context()),
		IncludeDeleted: true,
		Limit:          limit,
		Offset:         offset,
	})
}

func (h *CommunityHandlers) writeList(w http.ResponseWriter, r *http.Request, filter community.ListFilter) {
	ctx := r.Context()
	items, err := h.communities.List(ctx, filter)
	if err != nil {
		writeServiceError(w, r, "list communities", err)
		return
	}
	total, err := h.communities.Count(ctx, filter)
	if err != nil {
		writeServiceError(w, r, "count communities", err)
		return
	}
	if items == nil {
		items = []*community.Community{}
	}
	WriteJSON(w, ctx, http.StatusOK, ListResponse[*community.Community]{
		Items:  items,
		Total:  total,
		Limit:  effectiveLimit(filter.Limit),
		Offset: filter.Offset,
	})
}

// GetPage handles GET /communities/{id}, where the segment is the slug.
// Unpublished communities are visible only to their editors.
func (h *CommunityHandlers) GetPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug := chi.URLParam(r, "id")

	comm, err := h.communities.GetBySlug(ctx, slug)
	if err != nil {
		writeServiceError(w, r, "get community", err)
		return
	}

	editor := false
	if !comm.IsPublic() {
		if _, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), comm.ID); err != nil {
			WriteError(w, ctx, http.StatusNotFound, ErrCodeNotFound, "Not found")
			return
		}
		editor = true
	}

	events, err := h.events.ListByCommunity(ctx, comm.ID, community.EventFilter{PublishedOnly: !editor})
	if err != nil {
		writeServiceError(w, r, "list events", err)
		return
	}
	blocks, err := h.blocks.ListByOwner(ctx, content.Owner{Type: content.OwnerCommunity, ID: comm.ID})
	if err != nil {
		writeServiceError(w, r, "list blocks", err)
		return
	}
	if events == nil {
		events = []*community.Event{}
	}
	if blocks == nil {
		blocks = []*content.Block{}
	}
	WriteJSON(w, ctx, http.StatusOK, CommunityPage{Community: comm, Events: events, Blocks: blocks})
}

// ListCategories handles GET /categories.
func (h *CommunityHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeServiceError(w, r, "list categories", err)
		return
	}
	if categories == nil {
		categories = []community.Category{}
	}
	WriteJSON(w, r.Context(), http.StatusOK, categories)
}

// Create handles POST /communities. The caller becomes the owner and the
// community starts as a draft.
func (h *CommunityHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeServiceError(w, r, "create community", access.ErrUnauthenticated)
		return
	}

	var req CreateCommunityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = community.Slugify(req.Name)
	}
	comm := &community.Community{
		ID:          uuid.NewString(),
		OwnerID:     userID,
		Name:        strings.TrimSpace(req.Name),
		Slug:        slug,
		Description: strings.TrimSpace(req.Description),
		CategoryID:  req.CategoryID,
		LogoURL:     req.LogoURL,
		SocialLinks: req.SocialLinks,
		Status:      community.StatusDraft,
	}
	if err := comm.Validate(); err != nil {
		writeServiceError(w, r, "create community", err)
		return
	}
	if !h.categoryExists(w, r, comm.CategoryID) {
		return
	}

	err := h.communities.Insert(ctx, comm)
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, audit.ActionCreate, err)
	if err != nil {
		writeServiceError(w, r, "create community", err)
		return
	}
	WriteJSON(w, ctx, http.StatusCreated, comm)
}

func (h *CommunityHandlers) categoryExists(w http.ResponseWriter, r *http.Request, id *string) bool {
	if id == nil || *id == "" {
		return true
	}
	if _, err := h.categories.GetByID(r.Context(), *id); err != nil {
		if errors.Is(err, community.ErrCategoryNotFound) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "Unknown category")
			return false
		}
		writeServiceError(w, r, "get category", err)
		return false
	}
	return true
}

// Update handles PATCH /communities/{id}.
func (h *CommunityHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "update community", err)
		return
	}
	if comm.IsDeleted() {
		WriteError(w, ctx, http.StatusConflict, ErrCodeConflict, "Restore the community before editing it")
		return
	}

	var req UpdateCommunityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	oldSlug := comm.Slug
	if req.Name != nil {
		comm.Name = strings.TrimSpace(*req.Name)
	}
	if req.Slug != nil {
		comm.Slug = strings.TrimSpace(*req.Slug)
	}
	if req.Description != nil {
		comm.Description = strings.TrimSpace(*req.Description)
	}
	if req.CategoryID != nil {
		comm.CategoryID = req.CategoryID
		if *req.CategoryID == "" {
			comm.CategoryID = nil
		}
	}
	if req.LogoURL != nil {
		comm.LogoURL = *req.LogoURL
	}
	if req.SocialLinks != nil {
		comm.SocialLinks = *req.SocialLinks
	}
	if err := comm.Validate(); err != nil {
		writeServiceError(w, r, "update community", err)
		return
	}
	if !h.categoryExists(w, r, comm.CategoryID) {
		return
	}

	err = h.communities.Update(ctx, comm)
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, audit.ActionUpdate, err)
	if err != nil {
		writeServiceError(w, r, "update community", err)
		return
	}
	h.pages.community(ctx, comm, oldSlug)
	WriteJSON(w, ctx, http.StatusOK, comm)
}

// Submit handles POST /communities/{id}/submit, moving a draft to review.
func (h *CommunityHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "submit community", err)
		return
	}
	if comm.IsDeleted() {
		writeServiceError(w, r, "submit community", community.ErrInvalidTransition)
		return
	}
	next, err := community.SubmitForReview(comm.Status)
	if err != nil {
		writeServiceError(w, r, "submit community", err)
		return
	}

	err = h.communities.SetStatus(ctx, comm.ID, next)
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, audit.ActionSubmit, err)
	if err != nil {
		writeServiceError(w, r, "submit community", err)
		return
	}
	comm.Status = next
	WriteJSON(w, ctx, http.StatusOK, comm)
}

// Delete handles DELETE /communities/{id} (soft delete).
func (h *CommunityHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, true)
}

// Restore handles POST /communities/{id}/restore.
func (h *CommunityHandlers) Restore(w http.ResponseWriter, r *http.Request) {
	h.setDeleted(w, r, false)
}

func (h *CommunityHandlers) setDeleted(w http.ResponseWriter, r *http.Request, deleted bool) {
	ctx := r.Context()
	comm, err := h.access.CanEditCommunity(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, "delete community", err)
		return
	}
	h.applyDeleted(w, r, comm, deleted)
}

// applyDeleted is shared by the organizer and admin surfaces; callers have
// already authorized the change.
func (h *CommunityHandlers) applyDeleted(w http.ResponseWriter, r *http.Request, comm *community.Community, deleted bool) {
	ctx := r.Context()
	var err error
	action := audit.ActionRestore
	if deleted {
		action = audit.ActionDelete
		at := h.now()
		err = h.communities.SoftDelete(ctx, comm.ID, at)
		comm.DeletedAt = &at
	} else {
		err = h.communities.Restore(ctx, comm.ID)
		comm.DeletedAt = nil
	}
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, action, err)
	if err != nil {
		writeServiceError(w, r, action+" community", err)
		return
	}
	h.pages.community(ctx, comm)
	WriteJSON(w, ctx, http.StatusOK, comm)
}
