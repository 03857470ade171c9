package content

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricBlockReorders counts reorder calls by outcome.
const MetricBlockReorders = "content_block_reorders_total"

// Reorder outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics contains Prometheus metrics for block editing.
type Metrics struct {
	reorders *prometheus.CounterVec
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		reorders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBlockReorders,
				Help: "Total number of block reorder requests by outcome",
			},
			[]string{"owner_type", "outcome"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.reorders}
}

// ObserveReorder records the result of a Reorder call. A nil receiver is a no-op.
func (m *Metrics) ObserveReorder(owner OwnerType, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case errors.Is(err, ErrDuplicateBlock), errors.Is(err, ErrBlockSetMismatch):
		outcome = OutcomeRejected
	case err != nil:
		outcome = OutcomeError
	}
	m.reorders.WithLabelValues(string(owner), outcome).Inc()
}
