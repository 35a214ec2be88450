package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/advisory-aggregator/types"
)

// Metrics collects per run counters for the aggregation pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	AdvisoriesFetched   *prometheus.CounterVec
	SourceFailures      *prometheus.CounterVec
	BatchFailures       *prometheus.CounterVec
	AggregationDuration prometheus.Histogram
	ResultCount         prometheus.Gauge
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{gatherer: reg}

	m.AdvisoriesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_fetched_total",
			Help: "Total number of advisories returned by a source",
		},
		[]string{"source", "ecosystem"},
	)

	m.SourceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_source_failures_total",
			Help: "Total number of failed source invocations",
		},
		[]string{"source", "ecosystem"},
	)

	m.BatchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_batch_failures_total",
			Help: "Total number of failed batches",
		},
		[]string{"job"},
	)

	m.AggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisory_aggregation_duration_seconds",
			Help:    "Duration of an aggregation run in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	m.ResultCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "advisory_result_count",
			Help: "Number of advisories in the last aggregation result",
		},
	)

	reg.MustRegister(
		m.AdvisoriesFetched,
		m.SourceFailures,
		m.BatchFailures,
		m.AggregationDuration,
		m.ResultCount,
	)
	return m
}

func (m *Metrics) SourceFetched(source types.Source, eco types.Ecosystem, n int) {
	if m == nil {
		return
	}
	m.AdvisoriesFetched.WithLabelValues(string(source), string(eco)).Add(float64(n))
}

func (m *Metrics) SourceFailed(source types.Source, eco types.Ecosystem) {
	if m == nil {
		return
	}
	m.SourceFailures.WithLabelValues(string(source), string(eco)).Inc()
}

// BatchFailed matches the batch.Policy failure callback.
func (m *Metrics) BatchFailed(job string, _ int, _ error) {
	if m == nil {
		return
	}
	m.BatchFailures.WithLabelValues(job).Inc()
}

func (m *Metrics) Finished(d time.Duration, count int) {
	if m == nil {
		return
	}
	m.AggregationDuration.Observe(d.Seconds())
	m.ResultCount.Set(float64(count))
}

// WriteTextfile exports the metrics in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return xerrors.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
