package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
)

// CreateBlockRequest appends a block to a page.
type CreateBlockRequest struct {
	BlockType string          `json:"block_type" validate:"required,oneof=heading text image carousel"`
	Content   json.RawMessage `json:"content" validate:"required"`
}

// UpdateBlockRequest replaces a block's content. The type cannot change.
type UpdateBlockRequest struct {
	Content json.RawMessage `json:"content" validate:"required"`
}

// ReorderBlocksRequest lists every block of the page in its new order.
type ReorderBlocksRequest struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}

// BlockHandlers holds dependencies for page block HTTP handlers.
type BlockHandlers struct {
	blocks  content.Repository
	access  *access.Checker
	metrics *content.Metrics
	audit   *audit.Recorder
	pages   pages
}

// NewBlockHandlers creates a new BlockHandlers instance.
func NewBlockHandlers(d Deps) *BlockHandlers {
	return &BlockHandlers{
		blocks:  d.Blocks,
		access:  d.Access,
		metrics: d.ContentMetrics,
		audit:   d.Audit,
		pages:   pages{cache: d.PageCache, events: d.Events},
	}
}

// authorize checks edit rights on owner and returns a function that drops
// the owner's cached pages.
func (h *BlockHandlers) authorize(ctx context.Context, owner content.Owner) (func(context.Context), error) {
	userID := middleware.GetUserID(ctx)
	switch owner.Type {
	case content.OwnerCommunity:
		comm, err := h.access.CanEditCommunity(ctx, userID, owner.ID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) { h.pages.community(ctx, comm) }, nil
	case content.OwnerEvent:
		ev, comm, err := h.access.CanEditEvent(ctx, userID, owner.ID)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) { h.pages.event(ctx, ev, comm) }, nil
	}
	return nil, access.ErrNotFound
}

func auditEntity(t content.OwnerType) string {
	if t == content.OwnerEvent {
		return audit.EntityEvent
	}
	return audit.EntityCommunity
}

func ownerFrom(r *http.Request, ownerType content.OwnerType) content.Owner {
	return content.Owner{Type: ownerType, ID: chi.URLParam(r, "id")}
}

// List returns the handler for GET /{owner}/{id}/blocks, the editor view
// of a page's blocks.
func (h *BlockHandlers) List(ownerType content.OwnerType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owner := ownerFrom(r, ownerType)
		if err := h.access.CanEditOwner(ctx, middleware.GetUserID(ctx), owner); err != nil {
			writeServiceError(w, r, "list blocks", err)
			return
		}
		blocks, err := h.blocks.ListByOwner(ctx, owner)
		if err != nil {
			writeServiceError(w, r, "list blocks", err)
			return
		}
		if blocks == nil {
			blocks = []*content.Block{}
		}
		WriteJSON(w, ctx, http.StatusOK, blocks)
	}
}

// Create returns the handler for POST /{owner}/{id}/blocks. The block is
// appended after the page's last block.
func (h *BlockHandlers) Create(ownerType content.OwnerType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owner := ownerFrom(r, ownerType)
		invalidate, err := h.authorize(ctx, owner)
		if err != nil {
			writeServiceError(w, r, "create block", err)
			return
		}

		var req CreateBlockRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}
		c, err := content.DecodeContent(content.BlockType(req.BlockType), req.Content)
		if err != nil {
			writeServiceError(w, r, "create block", err)
			return
		}

		block := &content.Block{ID: uuid.NewString(), Owner: owner, Content: c}
		if err := h.blocks.Append(ctx, block); err != nil {
			writeServiceError(w, r, "create block", err)
			return
		}
		invalidate(ctx)
		WriteJSON(w, ctx, http.StatusCreated, block)
	}
}

// Update handles PATCH /blocks/{id}.
func (h *BlockHandlers) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	block, invalidate, ok := h.loadForEdit(w, r, "update block")
	if !ok {
		return
	}

	var req UpdateBlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, r, err)
		return
	}
	c, err := content.DecodeContent(block.Type(), req.Content)
	if err != nil {
		writeServiceError(w, r, "update block", err)
		return
	}

	updated, err := h.blocks.UpdateContent(ctx, block.ID, c)
	if err != nil {
		writeServiceError(w, r, "update block", err)
		return
	}
	invalidate(ctx)
	WriteJSON(w, ctx, http.StatusOK, updated)
}

// Delete handles DELETE /blocks/{id}. Later blocks move up one position.
func (h *BlockHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	block, invalidate, ok := h.loadForEdit(w, r, "delete block")
	if !ok {
		return
	}

	err := h.blocks.Delete(ctx, block.ID)
	h.audit.Record(ctx, audit.EntityBlock, block.ID, audit.ActionDelete, err)
	if err != nil {
		writeServiceError(w, r, "delete block", err)
		return
	}
	invalidate(ctx)
	WriteJSON(w, ctx, http.StatusOK, map[string]string{"id": block.ID})
}

// loadForEdit resolves the block in the URL and checks edit rights on its page.
func (h *BlockHandlers) loadForEdit(w http.ResponseWriter, r *http.Request, op string) (*content.Block, func(context.Context), bool) {
	ctx := r.Context()
	if middleware.GetUserID(ctx) == "" {
		writeServiceError(w, r, op, access.ErrUnauthenticated)
		return nil, nil, false
	}
	block, err := h.blocks.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, op, err)
		return nil, nil, false
	}
	invalidate, err := h.authorize(ctx, block.Owner)
	if err != nil {
		writeServiceError(w, r, op, err)
		return nil, nil, false
	}
	return block, invalidate, true
}

// Reorder returns the handler for PUT /{owner}/{id}/blocks/order. The body
// must list exactly the page's blocks; on success their positions are
// 0..N-1 in that order, and on failure no position changes.
func (h *BlockHandlers) Reorder(ownerType content.OwnerType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		owner := ownerFrom(r, ownerType)
		invalidate, err := h.authorize(ctx, owner)
		if err != nil {
			writeServiceError(w, r, "reorder blocks", err)
			return
		}

		var req ReorderBlocksRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeDecodeError(w, r, err)
			return
		}

		err = h.blocks.Reorder(ctx, owner, req.IDs)
		h.metrics.ObserveReorder(owner.Type, err)
		h.audit.Record(ctx, auditEntity(owner.Type), owner.ID, audit.ActionReorder, err)
		if err != nil {
			writeServiceError(w, r, "reorder blocks", err)
			return
		}
		invalidate(ctx)

		blocks, err := h.blocks.ListByOwner(ctx, owner)
		if err != nil {
			writeServiceError(w, r, "list blocks", err)
			return
		}
		WriteJSON(w, ctx, http.StatusOK, blocks)
	}
}
