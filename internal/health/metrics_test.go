package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_GetMetrics_AggregatesAcrossOperations(t *testing.T) {
	r := NewRecorder(10, nil)
	now := time.Now()
	r.Record("search", now, now.Add(10*time.Millisecond), true, "", nil)
	r.Record("search", now, now.Add(20*time.Millisecond), false, "timeout", nil)
	r.Record("post-status", now, now.Add(5*time.Millisecond), true, "", nil)

	m := r.GetMetrics()
	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Errors)

	search, ok := m.ByOperation["search"]
	require.True(t, ok)
	assert.Equal(t, 2, search.Count)
	assert.Equal(t, 1, search.Errors)
	assert.Equal(t, 10*time.Millisecond, search.Min)
	assert.Equal(t, 20*time.Millisecond, search.Max)
}

func TestRecorder_GetOperationMetrics_UnknownOperation(t *testing.T) {
	r := NewRecorder(10, nil)
	_, ok := r.GetOperationMetrics("nonexistent")
	assert.False(t, ok)
}

func TestRecorder_RingBufferEvictsOldest(t *testing.T) {
	r := NewRecorder(2, nil)
	now := time.Now()
	r.Record("op", now, now, true, "", nil)
	r.Record("op", now, now, true, "", nil)
	r.Record("op", now, now, true, "", nil)

	m := r.GetMetrics()
	assert.Equal(t, 2, m.Total)
}

func TestCheck_HealthyWhenAllPass(t *testing.T) {
	r := NewRecorder(10, nil)
	now := time.Now()
	r.Record("fast-op", now, now.Add(time.Millisecond), true, "", nil)

	report := r.Check()
	assert.Equal(t, StatusHealthy, report.Overall)
	assert.Equal(t, CheckPass, report.Checks["memory"])
	assert.Equal(t, CheckPass, report.Checks["error_rate"])
	assert.Equal(t, CheckPass, report.Checks["avg_response_time"])
}

func TestCheck_DegradedWhenErrorRateHigh(t *testing.T) {
	r := NewRecorder(10, nil)
	now := time.Now()
	for i := 0; i < 9; i++ {
		r.Record("op", now, now.Add(time.Millisecond), false, "boom", nil)
	}
	r.Record("op", now, now.Add(time.Millisecond), true, "", nil)

	report := r.Check()
	assert.Equal(t, CheckFail, report.Checks["error_rate"])
	assert.NotEqual(t, StatusHealthy, report.Overall)
}

func TestPercentile_EmptyInputReturnsZero(t *testing.T) {
	assert.Equal(t, time.Duration(0), percentile(nil, 0.95))
}
