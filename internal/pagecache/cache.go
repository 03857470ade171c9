package pagecache

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HeaderCache reports HIT, MISS or BYPASS.
const HeaderCache = "X-Cache"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 5 * time.Minute

// MetricPageCacheRequests counts cache lookups by result.
const MetricPageCacheRequests = "page_cache_requests_total"

type entry struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Cache serves public GET responses from a Store.
type Cache struct {
	store    Store
	ttl      time.Duration
	logger   *slog.Logger
	requests *prometheus.CounterVec
}

// New creates a Cache. logger may be nil.
func New(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricPageCacheRequests,
				Help: "Total number of page cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// Collectors returns the cache's Prometheus collectors.
func (c *Cache) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.requests}
}

// Middleware caches 200 responses of anonymous GET requests. Store errors
// are logged and the request is served by next.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.Header.Get("Authorization") != "" {
			c.requests.WithLabelValues("bypass").Inc()
			w.Header().Set(HeaderCache, "BYPASS")
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		pathKey := PathKey(r.URL.Path)
		variant := r.URL.RawQuery

		raw, ok, err := c.store.Get(ctx, pathKey, variant)
		if err != nil {
			c.logger.WarnContext(ctx, "page cache read failed", "path", r.URL.Path, "error", err)
		}
		if ok {
			var e entry
			if err := json.Unmarshal(raw, &e); err == nil {
				c.requests.WithLabelValues("hit").Inc()
				w.Header().Set(HeaderCache, "HIT")
				w.Header().Set("Content-Type", e.ContentType)
				w.Header().Set("Content-Length", strconv.Itoa(len(e.Body)))
				w.WriteHeader(e.Status)
				_, _ = w.Write(e.Body)
				return
			}
		}

		c.requests.WithLabelValues("miss").Inc()
		w.Header().Set(HeaderCache, "MISS")
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if rec.status != http.StatusOK {
			return
		}
		data, err := json.Marshal(entry{
			Status:      rec.status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		})
		if err != nil {
			return
		}
		if err := c.store.Set(ctx, pathKey, variant, data, c.ttl); err != nil {
			c.logger.WarnContext(ctx, "page cache write failed", "path", r.URL.Path, "error", err)
		}
	})
}

// Invalidate drops every cached variant of paths.
func (c *Cache) Invalidate(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	keys := make([]string, len(paths))
	for i, p := range paths {
		keys[i] = PathKey(p)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.ErrorContext(ctx, "page cache invalidation failed", "paths", paths, "error", err)
	}
}

// CommunityPaths returns the public pages that render a community.
func CommunityPaths(slug string) []string {
	return []string{"/communities", "/communities/" + slug}
}

// EventPaths returns the public pages that render an event.
func EventPaths(eventID string) []string {
	return []string{"/events/" + eventID}
}

// recorder tees the response body so it can be stored after the handler runs.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
