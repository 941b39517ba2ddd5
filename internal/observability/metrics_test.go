package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("portfolio")

	m.RecordRequest("/api/v1/portfolio", "GET", 200, 15*time.Millisecond)
	m.RecordError("/api/v1/classifications", "POST", "NOT_OWNER")
	m.RecordAssignments("assign", 2)
	m.RecordAssignments("not_found", 1)
	m.RecordAssignments("reassign", 0)
	m.RecordClassification()
	m.RecordScopeFallback("reports_to")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestCount.WithLabelValues("/api/v1/portfolio", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errorCount.WithLabelValues("/api/v1/classifications", "POST", "NOT_OWNER")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.assignments.WithLabelValues("assign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.classifications))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scopeFallbacks.WithLabelValues("reports_to")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "X")
		m.RecordAssignments("assign", 1)
		m.RecordClassification()
		m.RecordScopeFallback("none")
	})
}
