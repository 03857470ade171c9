package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/access"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/audit"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/media"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/middleware"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/pagecache"
)

// Deps wires the router. PageCache, Audit, ContentMetrics, HTTPMetrics and
// MetricsHandler may be nil.
type Deps struct {
	Logger *slog.Logger
	Tokens middleware.TokenValidator
	Access *access.Checker

	Communities community.CommunityRepository
	Events      community.EventRepository
	Categories  community.CategoryRepository
	Blocks      content.Repository

	Uploader *media.Uploader
	Policies media.Policies

	PageCache      *pagecache.Cache
	Audit          *audit.Recorder
	ContentMetrics *content.Metrics
	HTTPMetrics    *middleware.Metrics

	// RateLimitStore defaults to an in-memory store.
	RateLimitStore middleware.RateLimitStore
	UploadLimit    middleware.RateLimitConfig
	WriteLimit     middleware.RateLimitConfig

	HealthCheckers map[string]HealthChecker
	MetricsHandler http.Handler

	CORSOrigins []string
	ServiceName string
}

func (d *Deps) defaults() {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.RateLimitStore == nil {
		d.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	}
	if d.UploadLimit.Validate() != nil {
		d.UploadLimit = middleware.DefaultUploadLimit()
	}
	if d.WriteLimit.Validate() != nil {
		d.WriteLimit = middleware.DefaultWriteLimit()
	}
	if d.ServiceName == "" {
		d.ServiceName = "afisha-api"
	}
}

// NewRouter builds the HTTP surface: public pages, the organizer
// dashboard API, the admin moderation API and ops endpoints.
func NewRouter(d Deps) http.Handler {
	d.defaults()

	communities := NewCommunityHandlers(d)
	events := NewEventHandlers(d)
	blocks := NewBlockHandlers(d)
	mediaH := NewMediaHandlers(d)
	admin := NewAdminHandlers(d)
	health := NewHealthHandlers(d.HealthCheckers)

	r := chi.NewRouter()
	r.Use(
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Tracing(d.ServiceName),
		middleware.Logging(d.Logger),
	)
	if d.HTTPMetrics != nil {
		r.Use(middleware.HTTPMetrics(d.HTTPMetrics))
	}
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusNotFound, ErrCodeNotFound, "The requested resource was not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r.Context(), http.StatusMethodNotAllowed, ErrCodeBadRequest, "Method not allowed")
	})

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	if d.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", d.MetricsHandler)
	}

	// Public pages. Anonymous GETs are served from the page cache; a
	// signed-in editor bypasses it and may see unpublished pages.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(d.Tokens))
		if d.PageCache != nil {
			r.Use(d.PageCache.Middleware)
		}
		r.Get("/communities", communities.ListPublic)
		r.Get("/communities/{id}", communities.GetPage)
		r.Get("/events/{id}", events.GetPage)
		r.Get("/categories", communities.ListCategories)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Tokens))

		r.Get("/me/communities", communities.ListMine)
		r.Get("/communities/{id}/media", mediaH.List)
		r.Get("/communities/{id}/blocks", blocks.List(content.OwnerCommunity))
		r.Get("/events/{id}/blocks", blocks.List(content.OwnerEvent))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimiter(d.RateLimitStore, d.WriteLimit, middleware.UserKeyFunc(), d.HTTPMetrics))

			r.Post("/communities", communities.Create)
			r.Patch("/communities/{id}", communities.Update)
			r.Delete("/communities/{id}", communities.Delete)
			r.Post("/communities/{id}/submit", communities.Submit)
			r.Post("/communities/{id}/restore", communities.Restore)

			r.Post("/communities/{id}/events", events.Create)
			r.Patch("/events/{id}", events.Update)
			r.Delete("/events/{id}", events.Delete)
			r.Post("/events/{id}/toggle-publish", events.TogglePublish)
			r.Post("/events/{id}/restore", events.Restore)

			r.Post("/communities/{id}/blocks", blocks.Create(content.OwnerCommunity))
			r.Put("/communities/{id}/blocks/order", blocks.Reorder(content.OwnerCommunity))
			r.Post("/events/{id}/blocks", blocks.Create(content.OwnerEvent))
			r.Put("/events/{id}/blocks/order", blocks.Reorder(content.OwnerEvent))
			r.Patch("/blocks/{id}", blocks.Update)
			r.Delete("/blocks/{id}", blocks.Delete)

			r.Delete("/media/{id}", mediaH.Delete)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimiter(d.RateLimitStore, d.UploadLimit, middleware.UserKeyFunc(), d.HTTPMetrics))

			r.Post("/communities/{id}/media", mediaH.UploadGallery)
			r.Post("/communities/{id}/cover", mediaH.UploadCommunityCover)
			r.Post("/events/{id}/cover", mediaH.UploadEventCover)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin(d.Access))

			r.Get("/communities", admin.List)
			r.Route("/communities/{id}", func(r chi.Router) {
				r.Post("/publish", admin.Publish)
				r.Post("/unpublish", admin.Unpublish)
				r.Post("/feature", admin.ToggleFeatured)
				r.Post("/delete", admin.Delete)
				r.Post("/restore", admin.Restore)
			})
			r.With(middleware.RateLimiter(d.RateLimitStore, d.UploadLimit, middleware.UserKeyFunc(), d.HTTPMetrics)).
				Post("/media/{communityID}", mediaH.UploadAdmin)
		})
	})

	return r
}
