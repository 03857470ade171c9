package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/pagecache"
)

// pages drops cached public renderings after a change. A nil cache makes
// every call a no-op.
type pages struct {
	cache  *pagecache.Cache
	events community.EventRepository
}

// community drops the community pages under its current slug and any
// previous ones, plus the page of every event it owns: event pages embed the
// community and are public only while it is.
func (p pages) community(ctx context.Context, comm *community.Community, oldSlugs ...string) {
	if p.cache == nil {
		return
	}
	paths := pagecache.CommunityPaths(comm.Slug)
	for _, slug := range oldSlugs {
		if slug != comm.Slug {
			paths = append(paths, pagecache.CommunityPaths(slug)...)
		}
	}
	if p.events != nil {
		events, err := p.events.ListByCommunity(ctx, comm.ID, community.EventFilter{IncludeDeleted: true})
		if err != nil {
			slog.WarnContext(ctx, "event pages not invalidated", "community_id", comm.ID, "error", err)
		}
		for _, ev := range events {
			paths = append(paths, pagecache.EventPaths(ev.ID)...)
		}
	}
	p.cache.Invalidate(ctx, paths...)
}

// event drops the event page and its community's pages, which list
// published events.
func (p pages) event(ctx context.Context, ev *community.Event, comm *community.Community) {
	if p.cache == nil {
		return
	}
	paths := pagecache.EventPaths(ev.ID)
	if comm != nil {
		paths = append(paths, pagecache.CommunityPaths(comm.Slug)...)
	}
	p.cache.Invalidate(ctx, paths...)
}

// parsePage reads limit and offset query parameters. Out-of-range values
// are clamped by the repositories.
func parsePage(r *http.Request) (limit, offset int, ok bool) {
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return 0, 0, false
		}
	}
	if v := q.Get("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, false
		}
	}
	return limit, offset, true
}

// ListResponse is a page of results with the total match count.
type ListResponse[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return community.DefaultListLimit
	case limit > community.MaxListLimit:
		return community.MaxListLimit
	}
	return limit
}
