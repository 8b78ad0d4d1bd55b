package infra

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks valuation activity twice: atomic counters for cheap in-process
// snapshots, and a private Prometheus registry served on /metrics.
type Metrics struct {
	// Counters
	valuations       atomic.Uint64
	validationErrors atomic.Uint64
	batches          atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeStreams atomic.Int32

	registry           *prometheus.Registry
	valuationsTotal    *prometheus.CounterVec
	validationTotal    *prometheus.CounterVec
	valuationDuration  prometheus.Histogram
	activeStreamsGauge prometheus.Gauge
}

// GlobalMetrics is the process-wide instance used by the CLI and server.
var GlobalMetrics = NewMetrics()

// NewMetrics creates a Metrics with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.valuationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eso_valuations_total",
		Help: "Completed valuations by method",
	}, []string{"method"})

	m.validationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "eso_validation_errors_total",
		Help: "Rejected inputs by parameter error kind",
	}, []string{"kind"})

	m.valuationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "eso_valuation_duration_seconds",
		Help:    "Time spent valuing a single option",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	m.activeStreamsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "eso_active_streams",
		Help: "Open websocket valuation streams",
	})

	m.registry.MustRegister(m.valuationsTotal, m.validationTotal, m.valuationDuration, m.activeStreamsGauge)
	return m
}

// RecordValuation records one completed valuation and its latency.
func (m *Metrics) RecordValuation(method string, latency time.Duration) {
	m.valuations.Add(1)
	m.latencySumNs.Add(latency.Nanoseconds())
	m.latencyCount.Add(1)

	m.valuationsTotal.WithLabelValues(method).Inc()
	m.valuationDuration.Observe(latency.Seconds())
}

// RecordValidationError records an input rejected by the strict path.
func (m *Metrics) RecordValidationError(kind string) {
	m.validationErrors.Add(1)
	m.validationTotal.WithLabelValues(kind).Inc()
}

// RecordBatch records one batch run regardless of its size.
func (m *Metrics) RecordBatch() {
	m.batches.Add(1)
}

// IncrementStreams increments open streams by 1.
func (m *Metrics) IncrementStreams() {
	m.activeStreams.Add(1)
	m.activeStreamsGauge.Inc()
}

// DecrementStreams decrements open streams by 1.
func (m *Metrics) DecrementStreams() {
	m.activeStreams.Add(-1)
	m.activeStreamsGauge.Dec()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// MetricsSnapshot is a point-in-time view of the atomic counters.
type MetricsSnapshot struct {
	Valuations       uint64    `json:"valuations"`
	ValidationErrors uint64    `json:"validation_errors"`
	Batches          uint64    `json:"batches"`
	AvgLatencyNs     int64     `json:"avg_latency_ns"`
	ActiveStreams    int32     `json:"active_streams"`
	Timestamp        time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		Valuations:       m.valuations.Load(),
		ValidationErrors: m.validationErrors.Load(),
		Batches:          m.batches.Load(),
		AvgLatencyNs:     avgLatency,
		ActiveStreams:    m.activeStreams.Load(),
		Timestamp:        time.Now(),
	}
}

// Reset clears all counters (for testing). Histogram buckets are kept.
func (m *Metrics) Reset() {
	m.valuations.Store(0)
	m.validationErrors.Store(0)
	m.batches.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeStreams.Store(0)

	m.valuationsTotal.Reset()
	m.validationTotal.Reset()
	m.activeStreamsGauge.Set(0)
}
