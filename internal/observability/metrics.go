package observability

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects in-process counters for learning operations.
type Metrics struct {
	mu sync.Mutex

	requestTotal    atomic.Int64
	requestFailed   atomic.Int64
	conflictRetries atomic.Int64

	operations map[string]*OperationMetrics

	// Most recent durations, oldest first.
	durations    []time.Duration
	maxDurations int
}

// OperationMetrics holds counters for one operation name.
type OperationMetrics struct {
	executionCount atomic.Int64
	totalDuration  atomic.Int64 // milliseconds
	errorCount     atomic.Int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics(maxDurations int) *Metrics {
	if maxDurations <= 0 {
		maxDurations = 1000
	}
	return &Metrics{
		operations:   make(map[string]*OperationMetrics),
		durations:    make([]time.Duration, 0, maxDurations),
		maxDurations: maxDurations,
	}
}

// RecordRequest records the start of an operation.
func (m *Metrics) RecordRequest(operation string) {
	m.requestTotal.Add(1)
	m.operation(operation).executionCount.Add(1)
}

// RecordFailure records a failed operation.
func (m *Metrics) RecordFailure(operation string) {
	m.requestFailed.Add(1)
	m.operation(operation).errorCount.Add(1)
}

// RecordConflictRetry records one optimistic-concurrency retry.
func (m *Metrics) RecordConflictRetry() {
	m.conflictRetries.Add(1)
}

// RecordDuration records an operation's duration.
func (m *Metrics) RecordDuration(operation string, duration time.Duration) {
	om := m.operation(operation)
	om.totalDuration.Add(duration.Milliseconds())

	m.mu.Lock()
	if len(m.durations) >= m.maxDurations {
		m.durations = m.durations[1:]
	}
	m.durations = append(m.durations, duration)
	m.mu.Unlock()
}

func (m *Metrics) operation(name string) *OperationMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	om, ok := m.operations[name]
	if !ok {
		om = &OperationMetrics{}
		m.operations[name] = om
	}
	return om
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.requestTotal.Store(0)
	m.requestFailed.Store(0)
	m.conflictRetries.Store(0)

	m.mu.Lock()
	m.operations = make(map[string]*OperationMetrics)
	m.durations = make([]time.Duration, 0, m.maxDurations)
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the metrics.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	ops := make(map[string]*OperationSnapshot, len(m.operations))
	for name, om := range m.operations {
		count := om.executionCount.Load()
		total := om.totalDuration.Load()
		snap := &OperationSnapshot{
			ExecutionCount: count,
			TotalDuration:  total,
			ErrorCount:     om.errorCount.Load(),
		}
		if count > 0 {
			snap.AverageDuration = total / count
		}
		ops[name] = snap
	}

	var p95 time.Duration
	if n := len(m.durations); n > 0 {
		sorted := slices.Clone(m.durations)
		slices.Sort(sorted)
		p95 = sorted[(n*95-1)/100]
	}

	return &MetricsSnapshot{
		RequestTotal:    m.requestTotal.Load(),
		RequestFailed:   m.requestFailed.Load(),
		ConflictRetries: m.conflictRetries.Load(),
		Operations:      ops,
		DurationCount:   len(m.durations),
		P95Duration:     p95,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	RequestTotal    int64
	RequestFailed   int64
	ConflictRetries int64
	Operations      map[string]*OperationSnapshot
	DurationCount   int
	P95Duration     time.Duration
}

// OperationSnapshot represents metrics for one operation.
type OperationSnapshot struct {
	ExecutionCount  int64
	TotalDuration   int64
	ErrorCount      int64
	AverageDuration int64
}

// SuccessRate returns the success rate as a percentage (0-100).
func (s *MetricsSnapshot) SuccessRate() float64 {
	if s.RequestTotal == 0 {
		return 100.0
	}
	return float64(s.RequestTotal-s.RequestFailed) / float64(s.RequestTotal) * 100.0
}
