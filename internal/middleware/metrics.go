package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "afisha"

// Rate limiter decisions, used as the "decision" label.
const (
	DecisionAllowed  = "allowed"
	DecisionRejected = "rejected"
)

// Metrics holds the HTTP and rate limiter collectors shared by the
// middleware in this package. Safe for concurrent use.
type Metrics struct {
	limiterDecisions *prometheus.CounterVec
	limiterFailOpen  prometheus.Counter

	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	responseBytes *prometheus.HistogramVec
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	route := []string{"method", "route", "status"}
	return &Metrics{
		limiterDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limiter decisions by route, key kind and outcome.",
		}, []string{"route", "key_type", "decision"}),
		limiterFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ratelimit",
			Name:      "store_errors_total",
			Help:      "Requests let through because the shared limiter store failed.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Completed API requests.",
		}, route),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency. Upload routes dominate the upper buckets.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 1, 2.5, 10, 30},
		}, route),
		responseBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Size of API response bodies.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 7),
		}, route),
	}
}

// Register adds every collector to reg and stops at the first failure.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors lists the collectors for callers that register them themselves.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.limiterDecisions,
		m.limiterFailOpen,
		m.requests,
		m.latency,
		m.responseBytes,
	}
}

// ObserveRateLimit counts one limiter decision. keyType is "user" or "ip".
func (m *Metrics) ObserveRateLimit(route, keyType string, allowed bool) {
	decision := DecisionRejected
	if allowed {
		decision = DecisionAllowed
	}
	m.limiterDecisions.WithLabelValues(route, keyType, decision).Inc()
}

// IncRateLimitFailOpen counts a request admitted because the store errored.
func (m *Metrics) IncRateLimitFailOpen() {
	m.limiterFailOpen.Inc()
}

// ObserveHTTPRequest records one finished request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, seconds float64, size int) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.latency.WithLabelValues(method, route, status).Observe(seconds)
	m.responseBytes.WithLabelValues(method, route, status).Observe(float64(size))
}
