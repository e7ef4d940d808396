// Package metrics holds the Prometheus collectors for scan passes, partition
// registration and query executions. All recorder methods are safe to call
// on a nil receiver so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "log_manager"

// ScanMetrics covers partition scan passes.
type ScanMetrics struct {
	PassesTotal         *prometheus.CounterVec
	PassDurationSeconds prometheus.Histogram
	ObjectsTotal        prometheus.Counter
	RecordsTotal        prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	PartitionsTotal     *prometheus.CounterVec
}

// NewScanMetrics creates the scan collectors and registers them with reg.
func NewScanMetrics(reg prometheus.Registerer) *ScanMetrics {
	f := promauto.With(reg)
	return &ScanMetrics{
		PassesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_passes_total",
			Help:      "Scan passes by kind (hourly, daily, manual) and result",
		}, []string{"kind", "result"}),
		PassDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_pass_duration_seconds",
			Help:      "Duration of a scan pass in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		ObjectsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_objects_total",
			Help:      "Archive objects processed by scan passes",
		}),
		RecordsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_records_total",
			Help:      "Log records counted in fetched archive objects",
		}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Per-object scan failures by stage",
		}, []string{"stage"}),
		PartitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_registered_total",
			Help:      "Partition registration attempts by outcome",
		}, []string{"outcome"}),
	}
}

// RecordPass records a finished pass.
func (m *ScanMetrics) RecordPass(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.PassesTotal.WithLabelValues(kind, result).Inc()
	m.PassDurationSeconds.Observe(d.Seconds())
}

// RecordObject counts one processed object and the records it held.
func (m *ScanMetrics) RecordObject(records int64) {
	if m == nil {
		return
	}
	m.ObjectsTotal.Inc()
	m.RecordsTotal.Add(float64(records))
}

// RecordError counts a per-object failure at the given stage
// (extract, fetch, register).
func (m *ScanMetrics) RecordError(stage string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(stage).Inc()
}

// RecordPartition counts a registration outcome (submitted, already_registered, failed).
func (m *ScanMetrics) RecordPartition(outcome string) {
	if m == nil {
		return
	}
	m.PartitionsTotal.WithLabelValues(outcome).Inc()
}

// QueryMetrics covers query executions supervised by the manager.
type QueryMetrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	BytesScannedTotal prometheus.Counter
	PollersActive     prometheus.Gauge
}

// NewQueryMetrics creates the query collectors and registers them with reg.
// The pipeline label separates the interactive and partition managers.
func NewQueryMetrics(reg prometheus.Registerer, pipeline string) *QueryMetrics {
	f := promauto.With(prometheus.WrapRegistererWith(prometheus.Labels{"pipeline": pipeline}, reg))
	return &QueryMetrics{
		ExecutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_executions_total",
			Help:      "Query executions that reached a terminal state, by state",
		}, []string{"state"}),
		BytesScannedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_bytes_scanned_total",
			Help:      "Bytes scanned by succeeded query executions",
		}),
		PollersActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "query_pollers_active",
			Help:      "Background poll loops currently running",
		}),
	}
}

// RecordTerminal counts an execution reaching state.
func (m *QueryMetrics) RecordTerminal(state string, bytesScanned int64) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(state).Inc()
	if bytesScanned > 0 {
		m.BytesScannedTotal.Add(float64(bytesScanned))
	}
}

// PollerStarted increments the active poller gauge.
func (m *QueryMetrics) PollerStarted() {
	if m == nil {
		return
	}
	m.PollersActive.Inc()
}

// PollerStopped decrements the active poller gauge.
func (m *QueryMetrics) PollerStopped() {
	if m == nil {
		return
	}
	m.PollersActive.Dec()
}
