package media

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricUploads              = "media_uploads_total"
	MetricUploadBytes          = "media_upload_bytes"
	MetricUploadRollbacks      = "media_upload_rollbacks_total"
	MetricUploadLinkFailures   = "media_upload_link_failures_total"
	MetricObjectRemoveFailures = "media_object_remove_failures_total"
)

// Upload outcomes.
const (
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
	OutcomeDenied   = "denied"
	OutcomeFailed   = "failed"
)

// Metrics contains Prometheus metrics for the upload saga.
type Metrics struct {
	uploads              *prometheus.CounterVec
	uploadBytes          *prometheus.HistogramVec
	rollbacks            *prometheus.CounterVec
	linkFailures         *prometheus.CounterVec
	objectRemoveFailures prometheus.Counter
}

// NewMetrics creates the collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUploads,
				Help: "Total number of upload attempts by site and outcome",
			},
			[]string{"site", "outcome"},
		),
		uploadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricUploadBytes,
				Help:    "Size of stored uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
			},
			[]string{"site"},
		),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUploadRollbacks,
				Help: "Stored objects removed because the metadata insert failed, by result of the removal",
			},
			[]string{"result"},
		),
		linkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricUploadLinkFailures,
				Help: "Uploads kept in the gallery whose cover link failed",
			},
			[]string{"site"},
		),
		objectRemoveFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricObjectRemoveFailures,
				Help: "Objects left in storage after their metadata row was deleted",
			},
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
	return []prometheus.Collector{
		m.uploads,
		m.uploadBytes,
		m.rollbacks,
		m.linkFailures,
		m.objectRemoveFailures,
	}
}

func (m *Metrics) observeUpload(site Site, outcome string, size int64) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(site), outcome).Inc()
	if outcome == OutcomeStored {
		m.uploadBytes.WithLabelValues(string(site)).Observe(float64(size))
	}
}

func (m *Metrics) incRollback(removed bool) {
	if m == nil {
		return
	}
	result := "removed"
	if !removed {
		result = "orphaned"
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) incLinkFailure(site Site) {
	if m == nil {
		return
	}
	m.linkFailures.WithLabelValues(string(site)).Inc()
}

func (m *Metrics) incObjectRemoveFailure() {
	if m == nil {
		return
	}
	m.objectRemoveFailures.Inc()
}
