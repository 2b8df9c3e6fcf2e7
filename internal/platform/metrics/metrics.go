package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the record engine. Observer methods
// are nil-safe so components can run without metrics wired (tests, tooling).
type Metrics struct {
	TransitionsApplied *prometheus.CounterVec
	TransitionsDenied  prometheus.Counter
	LedgerAppends      *prometheus.CounterVec
	BatchItems         *prometheus.CounterVec
	Exports            *prometheus.CounterVec
	StreamPublished    prometheus.Counter
	StreamDropped      prometheus.Counter
	RequestLatency     *prometheus.HistogramVec
}

// New creates and registers all engine metrics on the default registry.
// Construct once per process.
func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dpp_lifecycle_transitions_total",
			Help: "Lifecycle transitions applied, labeled by target stage",
		}, []string{"to"}),

		TransitionsDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dpp_lifecycle_transitions_denied_total",
			Help: "Lifecycle transitions rejected by the state machine",
		}),

		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dpp_provenance_appends_total",
			Help: "Provenance ledger appends by step classification",
		}, []string{"step"}),

		BatchItems: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dpp_batch_items_total",
			Help: "Batch update items processed by outcome",
		}, []string{"outcome"}), // outcome: "success", "failed"

		Exports: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dpp_exports_total",
			Help: "Export runs by format",
		}, []string{"format"}),

		StreamPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dpp_stream_events_published_total",
			Help: "Provenance events published to the event stream",
		}),

		StreamDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dpp_stream_events_dropped_total",
			Help: "Provenance events dropped because the stream inbox was full",
		}),

		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dpp_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// IncTransitionApplied records a successful lifecycle transition.
func (m *Metrics) IncTransitionApplied(to string) {
	if m != nil {
		m.TransitionsApplied.WithLabelValues(to).Inc()
	}
}

// IncTransitionDenied records a rejected lifecycle transition.
func (m *Metrics) IncTransitionDenied() {
	if m != nil {
		m.TransitionsDenied.Inc()
	}
}

// IncLedgerAppend records a provenance append by step classification.
func (m *Metrics) IncLedgerAppend(step string) {
	if m != nil {
		m.LedgerAppends.WithLabelValues(step).Inc()
	}
}

// IncBatchItem records one batch item outcome.
func (m *Metrics) IncBatchItem(outcome string) {
	if m != nil {
		m.BatchItems.WithLabelValues(outcome).Inc()
	}
}

// IncExport records an export run for a format.
func (m *Metrics) IncExport(format string) {
	if m != nil {
		m.Exports.WithLabelValues(format).Inc()
	}
}

// IncStreamPublished records a provenance event handed to the stream sink.
func (m *Metrics) IncStreamPublished() {
	if m != nil {
		m.StreamPublished.Inc()
	}
}

// IncStreamDropped records a provenance event dropped on a full inbox.
func (m *Metrics) IncStreamDropped() {
	if m != nil {
		m.StreamDropped.Inc()
	}
}

// ObserveRequestLatency records an HTTP request duration.
func (m *Metrics) ObserveRequestLatency(method, route string, d time.Duration) {
	if m != nil {
		m.RequestLatency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}
