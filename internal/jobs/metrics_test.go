package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	boom := errors.New("boom")

	require.NoError(t, m.Track("requisition:sweep").End(nil))
	require.ErrorIs(t, m.Track("requisition:sweep").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("requisition:sweep", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("requisition:sweep", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("requisition:sweep")))
}

func TestItemsAndBacklog(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddItems("requisition:sweep", "enqueued", 3)
	m.AddItems("requisition:sweep", "enqueued", 0)
	m.SetBacklog("requisition:sweep", 5)
	m.SetBacklog("requisition:sweep", 2)

	require.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("requisition:sweep", "enqueued")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.backlog.WithLabelValues("requisition:sweep")))
}

func TestNilMetricsAreInert(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.AddItems("x", "y", 1)
	m.SetBacklog("x", 1)
}
