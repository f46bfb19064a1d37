// Package telemetry holds the Prometheus instruments recorded by sync runs.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vads_sync"

// SyncMetrics groups the collectors of a sync process. A nil *SyncMetrics is
// valid and records nothing.
type SyncMetrics struct {
	DocumentsWritten *prometheus.CounterVec
	EntitiesSkipped  *prometheus.CounterVec
	ConceptsFetched  *prometheus.CounterVec
	OversizeVersions prometheus.Counter
	RunDuration      *prometheus.HistogramVec
	RunsInFlight     prometheus.Gauge
}

// NewSyncMetrics creates the collectors and registers them with reg. Pass
// prometheus.NewRegistry() in tests to avoid global state.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		DocumentsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_written_total",
			Help:      "Documents upserted or appended, by collection.",
		}, []string{"collection"}),
		EntitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_skipped_total",
			Help:      "Entities skipped because they were already indexed, by kind.",
		}, []string{"kind"}),
		ConceptsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "concepts_fetched_total",
			Help:      "Concepts fetched from the vocabulary service, by kind.",
		}, []string{"kind"}),
		OversizeVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oversize_versions_total",
			Help:      "Value set versions skipped for exceeding the concept ceiling.",
		}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of operations, by operation name.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"operation"}),
		RunsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Operations currently executing.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.DocumentsWritten,
			m.EntitiesSkipped,
			m.ConceptsFetched,
			m.OversizeVersions,
			m.RunDuration,
			m.RunsInFlight,
		)
	}
	return m
}

func (m *SyncMetrics) Written(collection string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DocumentsWritten.WithLabelValues(collection).Add(float64(n))
}

func (m *SyncMetrics) Skipped(kind string) {
	if m == nil {
		return
	}
	m.EntitiesSkipped.WithLabelValues(kind).Inc()
}

func (m *SyncMetrics) Fetched(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ConceptsFetched.WithLabelValues(kind).Add(float64(n))
}

func (m *SyncMetrics) Oversize() {
	if m == nil {
		return
	}
	m.OversizeVersions.Inc()
}

// ObserveRun records the duration of one operation in seconds.
func (m *SyncMetrics) ObserveRun(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(operation).Observe(seconds)
}

// RunStarted marks an operation as executing; call the returned func when it ends.
func (m *SyncMetrics) RunStarted() func() {
	if m == nil {
		return func() {}
	}
	m.RunsInFlight.Inc()
	return m.RunsInFlight.Dec
}
