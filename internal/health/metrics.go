// Package health implements the Health & Metrics layer (L10): a rolling
// response-duration histogram, per-operation metrics, a health-check
// aggregator, and Prometheus instrumentation. See SPEC_FULL.md §4.9.
package health

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/klistr-labs/fedgatewayd/internal/model"
)

// defaultHistorySize bounds the in-process perf ring buffer, per spec §3
// (default 1000).
const defaultHistorySize = 1000

// OperationMetrics is the computed summary for one operation name.
type OperationMetrics struct {
	Count   int
	Errors  int
	Avg     time.Duration
	Min     time.Duration
	Max     time.Duration
	P95     time.Duration
	P99     time.Duration
}

// Metrics is the aggregate getMetrics() response.
type Metrics struct {
	Total      int
	Errors     int
	ByOperation map[string]OperationMetrics
}

// Recorder is the bounded request-performance ring buffer plus Prometheus
// wiring. Grounded on klistr's admin stats handlers shape
// (`internal/server/admin.go`) for the rolling-counter idea, generalized
// from simple counters into a full percentile histogram, and additionally
// instrumented with `prometheus/client_golang` per SPEC_FULL.md's domain
// stack table.
type Recorder struct {
	mu      sync.Mutex
	records []model.PerfRecord
	cap     int

	promDuration *prometheus.SummaryVec
	promTotal    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with the given ring capacity (0 uses the
// spec default of 1000) and registers its Prometheus collectors against
// reg (pass prometheus.NewRegistry() per-process, or nil to skip
// registration in tests).
func NewRecorder(capacity int, reg prometheus.Registerer) *Recorder {
	if capacity <= 0 {
		capacity = defaultHistorySize
	}
	r := &Recorder{
		cap: capacity,
		promDuration: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       "fedgatewayd_operation_duration_seconds",
			Help:       "Duration of engine operations by name.",
			Objectives: map[float64]float64{0.5: 0.05, 0.95: 0.01, 0.99: 0.001},
		}, []string{"operation"}),
		promTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedgatewayd_operation_total",
			Help: "Count of engine operations by name and outcome.",
		}, []string{"operation", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(r.promDuration, r.promTotal)
	}
	return r
}

// Record appends a completed operation's performance record, evicting the
// oldest entry once at capacity, and updates the Prometheus vectors.
func (r *Recorder) Record(operation string, start, end time.Time, success bool, errMsg string, tags map[string]string) {
	rec := model.PerfRecord{Operation: operation, Start: start, End: end, Success: success, ErrorMsg: errMsg, Tags: tags}

	r.mu.Lock()
	r.records = append(r.records, rec)
	if len(r.records) > r.cap {
		r.records = r.records[len(r.records)-r.cap:]
	}
	r.mu.Unlock()

	duration := end.Sub(start)
	r.promDuration.WithLabelValues(operation).Observe(duration.Seconds())
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	r.promTotal.WithLabelValues(operation, outcome).Inc()
}

// GetMetrics computes the aggregate rolling statistics across all recorded
// operations.
func (r *Recorder) GetMetrics() Metrics {
	r.mu.Lock()
	records := make([]model.PerfRecord, len(r.records))
	copy(records, r.records)
	r.mu.Unlock()

	byOp := make(map[string][]model.PerfRecord)
	for _, rec := range records {
		byOp[rec.Operation] = append(byOp[rec.Operation], rec)
	}

	m := Metrics{Total: len(records), ByOperation: make(map[string]OperationMetrics, len(byOp))}
	for _, rec := range records {
		if !rec.Success {
			m.Errors++
		}
	}
	for op, recs := range byOp {
		m.ByOperation[op] = computeOperationMetrics(recs)
	}
	return m
}

// GetOperationMetrics returns the rolling statistics for a single operation
// name, or the zero value and false if no records exist for it.
func (r *Recorder) GetOperationMetrics(name string) (OperationMetrics, bool) {
	r.mu.Lock()
	var matching []model.PerfRecord
	for _, rec := range r.records {
		if rec.Operation == name {
			matching = append(matching, rec)
		}
	}
	r.mu.Unlock()
	if len(matching) == 0 {
		return OperationMetrics{}, false
	}
	return computeOperationMetrics(matching), true
}

func computeOperationMetrics(recs []model.PerfRecord) OperationMetrics {
	durations := make([]time.Duration, len(recs))
	var sum time.Duration
	om := OperationMetrics{Count: len(recs)}
	for i, rec := range recs {
		d := rec.End.Sub(rec.Start)
		durations[i] = d
		sum += d
		if !rec.Success {
			om.Errors++
		}
		if i == 0 || d < om.Min {
			om.Min = d
		}
		if d > om.Max {
			om.Max = d
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	om.Avg = sum / time.Duration(len(recs))
	om.P95 = percentile(durations, 0.95)
	om.P99 = percentile(durations, 0.99)
	return om
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Status is one of the three health-check tiers.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one component's health-check verdict.
type CheckResult string

const (
	CheckPass CheckResult = "pass"
	CheckWarn CheckResult = "warn"
	CheckFail CheckResult = "fail"
)

// Report is the aggregated health-check response.
type Report struct {
	Overall Status
	Checks  map[string]CheckResult
}

// heapThresholdBytes is the "memory: pass if heap < 500 MB" threshold from
// §4.9.
const heapThresholdBytes = 500 * 1024 * 1024
const errorRateThreshold = 0.10
const avgResponseThreshold = 5 * time.Second

// Check runs the three named threshold checks and aggregates an overall
// status: healthy if all pass, degraded if >= 50% pass, else unhealthy.
func (r *Recorder) Check() Report {
	checks := make(map[string]CheckResult, 3)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc < heapThresholdBytes {
		checks["memory"] = CheckPass
	} else {
		checks["memory"] = CheckFail
	}

	metrics := r.GetMetrics()
	if metrics.Total == 0 || float64(metrics.Errors)/float64(metrics.Total) < errorRateThreshold {
		checks["error_rate"] = CheckPass
	} else {
		checks["error_rate"] = CheckFail
	}

	avg := overallAverage(metrics)
	if avg < avgResponseThreshold {
		checks["avg_response_time"] = CheckPass
	} else {
		checks["avg_response_time"] = CheckFail
	}

	passing := 0
	for _, v := range checks {
		if v == CheckPass {
			passing++
		}
	}
	ratio := float64(passing) / float64(len(checks))

	overall := StatusUnhealthy
	switch {
	case ratio == 1:
		overall = StatusHealthy
	case ratio >= 0.5:
		overall = StatusDegraded
	}
	return Report{Overall: overall, Checks: checks}
}

func overallAverage(m Metrics) time.Duration {
	if m.Total == 0 {
		return 0
	}
	var sum time.Duration
	for _, om := range m.ByOperation {
		sum += om.Avg * time.Duration(om.Count)
	}
	return sum / time.Duration(m.Total)
}
