package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// readyTimeout bounds the whole readiness round, not each probe.
const readyTimeout = 5 * time.Second

// HealthChecker is a dependency probe: the database, Redis, object storage.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	checkers map[string]HealthChecker
}

// NewHealthHandlers keys probes by dependency name. Nil probes are dropped so
// optional dependencies can be passed unconditionally.
func NewHealthHandlers(checkers map[string]HealthChecker) *HealthHandlers {
	h := &HealthHandlers{checkers: make(map[string]HealthChecker, len(checkers))}
	for name, c := range checkers {
		if c != nil {
			h.checkers[name] = c
		}
	}
	return h
}

// HealthResponse is the probe body. Probes are read by orchestrators, so it
// is not wrapped in the result envelope.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health. A running process is live.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeHealth(w, http.StatusOK, map[string]string{"runtime": "ok"})
}

// Ready handles GET /ready. Probes run concurrently; any failure makes the
// instance unready with 503.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make([]result, 0, len(h.checkers))
	for name := range h.checkers {
		results = append(results, result{name: name})
	}

	var g errgroup.Group
	for i := range results {
		g.Go(func() error {
			results[i].err = h.checkers[results[i].name].HealthCheck(ctx)
			return nil
		})
	}
	_ = g.Wait()

	checks := map[string]string{"metrics": "ok"}
	code := http.StatusOK
	for _, res := range results {
		if res.err != nil {
			slog.WarnContext(ctx, "readiness probe failed", "dependency", res.name, "error", res.err)
			checks[res.name] = "error"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[res.name] = "ok"
	}
	writeHealth(w, code, checks)
}

func writeHealth(w http.ResponseWriter, code int, checks map[string]string) {
	status := "healthy"
	if code != http.StatusOK {
		status = "unhealthy"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	err := json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
