package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

// AdminHandlers serves the moderation surface. Every route sits behind
// RequireAdmin.
type AdminHandlers struct {
	*CommunityHandlers
}

// NewAdminHandlers creates a new AdminHandlers instance.
func NewAdminHandlers(d Deps) *AdminHandlers {
	return &AdminHandlers{CommunityHandlers: NewCommunityHandlers(d)}
}

// RequireAdmin rejects callers without the admin role. The role is read
// from the profile store on every request.
func RequireAdmin(checker *access.Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checker.RequireAdmin(r.Context(), middleware.GetUserID(r.Context())); err != nil {
				writeServiceError(w, r, "require admin", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// List handles GET /admin/communities?status=&deleted=only|include.
func (h *AdminHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := parsePage(r)
	if !ok {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "limit and offset must be non-negative integers")
		return
	}
	q := r.URL.Query()
	filter := community.ListFilter{
		OwnerID: q.Get("owner"),
		Limit:   limit,
		Offset:  offset,
	}
	if s := community.Status(q.Get("status")); s != "" {
		if !s.Valid() {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "status must be one of: draft, pending, published")
			return
		}
		filter.Status = s
	}
	switch q.Get("deleted") {
	case "":
	case "only":
		filter.DeletedOnly = true
	case "include":
		filter.IncludeDeleted = true
	default:
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "deleted must be one of: only, include")
		return
	}
	h.writeList(w, r, filter)
}

func (h *AdminHandlers) load(w http.ResponseWriter, r *http.Request, op string) (*community.Community, bool) {
	comm, err := h.communities.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, op, err)
		return nil, false
	}
	return comm, true
}

// Publish handles POST /admin/communities/{id}/publish.
func (h *AdminHandlers) Publish(w http.ResponseWriter, r *http.Request) {
	comm, ok := h.load(w, r, "publish community")
	if !ok {
		return
	}
	if comm.IsDeleted() {
		writeServiceError(w, r, "publish community", community.ErrInvalidTransition)
		return
	}
	h.setStatus(w, r, comm, community.Publish(comm.Status), audit.ActionPublish)
}

// Unpublish handles POST /admin/communities/{id}/unpublish.
func (h *AdminHandlers) Unpublish(w http.ResponseWriter, r *http.Request) {
	comm, ok := h.load(w, r, "unpublish community")
	if !ok {
		return
	}
	next, err := community.Unpublish(comm.Status)
	if err != nil {
		writeServiceError(w, r, "unpublish community", err)
		return
	}
	h.setStatus(w, r, comm, next, audit.ActionUnpublish)
}

func (h *AdminHandlers) setStatus(w http.ResponseWriter, r *http.Request, comm *community.Community, next community.Status, action string) {
	ctx := r.Context()
	err := h.communities.SetStatus(ctx, comm.ID, next)
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, action, err)
	if err != nil {
		writeServiceError(w, r, action+" community", err)
		return
	}
	comm.Status = next
	h.pages.community(ctx, comm)
	WriteJSON(w, ctx, http.StatusOK, comm)
}

// ToggleFeatured handles POST /admin/communities/{id}/feature.
func (h *AdminHandlers) ToggleFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	comm, ok := h.load(w, r, "feature community")
	if !ok {
		return
	}

	next := !comm.IsFeatured
	action := audit.ActionFeature
	if !next {
		action = audit.ActionUnfeature
	}
	err := h.communities.SetFeatured(ctx, comm.ID, next)
	h.audit.Record(ctx, audit.EntityCommunity, comm.ID, action, err)
	if err != nil {
		writeServiceError(w, r, action+" community", err)
		return
	}
	comm.IsFeatured = next
	h.pages.community(ctx, comm)
	WriteJSON(w, ctx, http.StatusOK, comm)
}

// Delete handles POST /admin/communities/{id}/delete.
func (h *AdminHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	if comm, ok := h.load(w, r, "delete community"); ok {
		h.applyDeleted(w, r, comm, true)
	}
}

// Restore handles POST /admin/communities/{id}/restore.
func (h *AdminHandlers) Restore(w http.ResponseWriter, r *http.Request) {
	if comm, ok := h.load(w, r, "restore community"); ok {
		h.applyDeleted(w, r, comm, false)
	}
}
