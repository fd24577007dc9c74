// Package monitor records per-operation performance samples and derives
// aggregate statistics from a bounded in-memory window.
package monitor

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// MaxSamples bounds the in-memory sample window. When the window fills,
// the oldest half is dropped in one batch so steady-state appends stay
// cheap instead of shifting on every insert.
const MaxSamples = 10000

// Sample is one recorded operation execution.
type Sample struct {
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	ErrorCode string        `json:"error_code,omitempty"`
	CacheHit  bool          `json:"cache_hit"`
	HeapDelta int64         `json:"heap_delta"`
	StartedAt time.Time     `json:"started_at"`
}

// OperationStats aggregates the retained samples for one operation name.
type OperationStats struct {
	Operation         string  `json:"operation"`
	Count             int     `json:"count"`
	AverageResponseMs float64 `json:"average_response_ms"`
	MaxResponseMs     float64 `json:"max_response_ms"`
	ErrorRate         float64 `json:"error_rate"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
}

// Report is a point-in-time view over the retained sample window.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	SampleCount     int              `json:"sample_count"`
	WindowStart     time.Time        `json:"window_start,omitempty"`
	HeapAllocBytes  uint64           `json:"heap_alloc_bytes"`
	TotalAllocBytes uint64           `json:"total_alloc_bytes"`
	NumGoroutine    int              `json:"num_goroutine"`
	Operations      []OperationStats `json:"operations"`
}

// Monitor tracks operation timings. All methods are safe for concurrent
// use. An optional OpenTelemetry meter mirrors the samples into export
// pipelines; aggregation queries always answer from the local window so
// they work without a collector.
type Monitor struct {
	mu         sync.Mutex
	samples    []Sample
	maxSamples int
	logger     *zap.Logger

	durationHist metric.Float64Histogram
	opsCounter   metric.Int64Counter
}

// Option is a functional option for configuring the monitor
type Option func(*Monitor)

// WithLogger sets the logger for the monitor
func WithLogger(logger *zap.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMaxSamples overrides the retained sample window size
func WithMaxSamples(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxSamples = n
		}
	}
}

// WithMeter registers OpenTelemetry instruments for exported metrics.
// Instrument creation failures are logged and leave export disabled.
func WithMeter(meter metric.Meter) Option {
	return func(m *Monitor) {
		hist, err := meter.Float64Histogram(
			"finbooks_operation_duration_ms",
			metric.WithDescription("Duration of tracked operations"),
			metric.WithUnit("ms"),
		)
		if err != nil {
			m.logger.Warn("Failed to create duration histogram", zap.Error(err))
			return
		}
		counter, err := meter.Int64Counter(
			"finbooks_operation_total",
			metric.WithDescription("Total tracked operation executions"),
			metric.WithUnit("{operations}"),
		)
		if err != nil {
			m.logger.Warn("Failed to create operation counter", zap.Error(err))
			return
		}
		m.durationHist = hist
		m.opsCounter = counter
	}
}

// New creates a new operation monitor.
func New(opts ...Option) *Monitor {
	m := &Monitor{
		maxSamples: MaxSamples,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.samples = make([]Sample, 0, m.maxSamples)
	return m
}

// Tracked is an in-flight operation recording. It is not safe for
// concurrent use; each execution gets its own.
type Tracked struct {
	monitor   *Monitor
	operation string
	startedAt time.Time
	startHeap uint64
	cacheHit  bool
	errorCode string
	done      bool
}

// Start begins recording one execution of the named operation.
func (m *Monitor) Start(operation string) *Tracked {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return &Tracked{
		monitor:   m,
		operation: operation,
		startedAt: time.Now(),
		startHeap: ms.HeapAlloc,
	}
}

// SetCacheHit marks whether this execution was served from cache.
func (t *Tracked) SetCacheHit(hit bool) {
	t.cacheHit = hit
}

// SetErrorCode attaches a classification code for a failed execution.
func (t *Tracked) SetErrorCode(code string) {
	t.errorCode = code
}

// End finalizes the recording. Calling End more than once is a no-op.
func (t *Tracked) End(ctx context.Context, err error) {
	if t.done {
		return
	}
	t.done = true

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	// Heap can shrink mid-operation when GC runs; clamp to zero rather
	// than reporting a negative allocation.
	var heapDelta int64
	if ms.HeapAlloc > t.startHeap {
		heapDelta = int64(ms.HeapAlloc - t.startHeap)
	}

	s := Sample{
		Operation: t.operation,
		Duration:  time.Since(t.startedAt),
		Success:   err == nil,
		ErrorCode: t.errorCode,
		CacheHit:  t.cacheHit,
		HeapDelta: heapDelta,
		StartedAt: t.startedAt,
	}
	t.monitor.record(ctx, s)
}

// Track runs fn as a recorded execution of the named operation. The
// result of fn is returned unchanged.
func (m *Monitor) Track(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	t := m.Start(operation)
	err := fn(ctx)
	t.End(ctx, err)
	return err
}

func (m *Monitor) record(ctx context.Context, s Sample) {
	m.mu.Lock()
	if len(m.samples) >= m.maxSamples {
		// Drop the oldest half in one batch.
		keep := m.samples[len(m.samples)/2:]
		m.samples = append(m.samples[:0], keep...)
		m.logger.Debug("Dropped oldest performance samples",
			zap.Int("retained", len(m.samples)))
	}
	m.samples = append(m.samples, s)
	m.mu.Unlock()

	if m.durationHist != nil {
		attrs := metric.WithAttributes(
			attribute.String("operation", s.Operation),
			attribute.Bool("success", s.Success),
			attribute.Bool("cache_hit", s.CacheHit),
		)
		m.durationHist.Record(ctx, float64(s.Duration)/float64(time.Millisecond), attrs)
		m.opsCounter.Add(ctx, 1, attrs)
	}
}

// AverageResponseTime returns the mean duration of retained samples for
// the operation, or zero when none were recorded.
func (m *Monitor) AverageResponseTime(operation string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total time.Duration
	count := 0
	for _, s := range m.samples {
		if s.Operation == operation {
			total += s.Duration
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / time.Duration(count)
}

// ErrorRate returns the failed fraction of retained samples for the
// operation, or zero when none were recorded.
func (m *Monitor) ErrorRate(operation string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	failures, count := 0, 0
	for _, s := range m.samples {
		if s.Operation == operation {
			count++
			if !s.Success {
				failures++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return float64(failures) / float64(count)
}

// CacheHitRate returns the cache-served fraction of retained samples for
// the operation, or zero when none were recorded.
func (m *Monitor) CacheHitRate(operation string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	hits, count := 0, 0
	for _, s := range m.samples {
		if s.Operation == operation {
			count++
			if s.CacheHit {
				hits++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return float64(hits) / float64(count)
}

// SampleCount returns the number of retained samples.
func (m *Monitor) SampleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.samples)
}

// Report aggregates the retained window per operation, sorted by name,
// together with current process memory figures.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	type agg struct {
		count    int
		total    time.Duration
		max      time.Duration
		failures int
		hits     int
	}
	byOp := make(map[string]*agg)
	var windowStart time.Time
	for i, s := range m.samples {
		if i == 0 {
			windowStart = s.StartedAt
		}
		a, ok := byOp[s.Operation]
		if !ok {
			a = &agg{}
			byOp[s.Operation] = a
		}
		a.count++
		a.total += s.Duration
		if s.Duration > a.max {
			a.max = s.Duration
		}
		if !s.Success {
			a.failures++
		}
		if s.CacheHit {
			a.hits++
		}
	}
	sampleCount := len(m.samples)
	m.mu.Unlock()

	names := make([]string, 0, len(byOp))
	for name := range byOp {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := make([]OperationStats, 0, len(names))
	for _, name := range names {
		a := byOp[name]
		ops = append(ops, OperationStats{
			Operation:         name,
			Count:             a.count,
			AverageResponseMs: float64(a.total) / float64(a.count) / float64(time.Millisecond),
			MaxResponseMs:     float64(a.max) / float64(time.Millisecond),
			ErrorRate:         float64(a.failures) / float64(a.count),
			CacheHitRate:      float64(a.hits) / float64(a.count),
		})
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Report{
		GeneratedAt:     time.Now(),
		SampleCount:     sampleCount,
		WindowStart:     windowStart,
		HeapAllocBytes:  ms.HeapAlloc,
		TotalAllocBytes: ms.TotalAlloc,
		NumGoroutine:    runtime.NumGoroutine(),
		Operations:      ops,
	}
}

// Reset clears the retained sample window.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = m.samples[:0]
}
