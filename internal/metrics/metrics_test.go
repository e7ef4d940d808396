package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewScanMetrics(reg)

	m.RecordPass("hourly", 2*time.Second, nil)
	m.RecordPass("daily", time.Second, errors.New("boom"))
	m.RecordObject(12)
	m.RecordObject(3)
	m.RecordError("fetch")
	m.RecordPartition("submitted")
	m.RecordPartition("already_registered")
	m.RecordPartition("already_registered")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("hourly", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassesTotal.WithLabelValues("daily", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ObjectsTotal))
	assert.Equal(t, 15.0, testutil.ToFloat64(m.RecordsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("fetch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PartitionsTotal.WithLabelValues("already_registered")))
}

func TestQueryMetrics_PipelinesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	interactive := NewQueryMetrics(reg, "interactive")
	partitions := NewQueryMetrics(reg, "partitions")

	interactive.RecordTerminal("SUCCEEDED", 1024)
	partitions.RecordTerminal("FAILED", 0)
	interactive.PollerStarted()
	interactive.PollerStarted()
	interactive.PollerStopped()

	assert.Equal(t, 1.0, testutil.ToFloat64(interactive.ExecutionsTotal.WithLabelValues("SUCCEEDED")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(interactive.BytesScannedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(partitions.ExecutionsTotal.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(interactive.PollersActive))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsAreNoops(t *testing.T) {
	var s *ScanMetrics
	var q *QueryMetrics
	assert.NotPanics(t, func() {
		s.RecordPass("manual", time.Second, nil)
		s.RecordObject(1)
		s.RecordError("extract")
		s.RecordPartition("failed")
		q.RecordTerminal("CANCELLED", 0)
		q.PollerStarted()
		q.PollerStopped()
	})
}
