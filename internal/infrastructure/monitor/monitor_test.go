package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_TrackRecordsSample(t *testing.T) {
	m := New()

	err := m.Track(context.Background(), "get_balance", func(ctx context.Context) error {
		time.Sleep(2 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, 1, m.SampleCount())
	assert.GreaterOrEqual(t, m.AverageResponseTime("get_balance"), 2*time.Millisecond)
	assert.Equal(t, 0.0, m.ErrorRate("get_balance"))
}

func TestMonitor_TrackPropagatesError(t *testing.T) {
	m := New()
	boom := errors.New("boom")

	err := m.Track(context.Background(), "get_balance", func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 1.0, m.ErrorRate("get_balance"))
}

func TestMonitor_ErrorRateMixed(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = m.Track(ctx, "op", func(ctx context.Context) error { return nil })
	}
	_ = m.Track(ctx, "op", func(ctx context.Context) error { return errors.New("fail") })

	assert.InDelta(t, 0.25, m.ErrorRate("op"), 1e-9)
}

func TestMonitor_CacheHitRate(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		tr := m.Start("get_balance")
		tr.SetCacheHit(i%2 == 0)
		tr.End(ctx, nil)
	}

	assert.InDelta(t, 0.5, m.CacheHitRate("get_balance"), 1e-9)
}

func TestMonitor_UnknownOperation(t *testing.T) {
	m := New()

	assert.Equal(t, time.Duration(0), m.AverageResponseTime("never_ran"))
	assert.Equal(t, 0.0, m.ErrorRate("never_ran"))
	assert.Equal(t, 0.0, m.CacheHitRate("never_ran"))
}

func TestMonitor_WindowDropsOldestHalf(t *testing.T) {
	m := New(WithMaxSamples(100))
	ctx := context.Background()

	// Label the first half distinctly so the drop is observable.
	for i := 0; i < 50; i++ {
		tr := m.Start("old")
		tr.End(ctx, nil)
	}
	for i := 0; i < 50; i++ {
		tr := m.Start("new")
		tr.End(ctx, nil)
	}
	require.Equal(t, 100, m.SampleCount())

	tr := m.Start("overflow")
	tr.End(ctx, nil)

	assert.Equal(t, 51, m.SampleCount(), "the oldest half is dropped in one batch")

	report := m.Report()
	byOp := map[string]OperationStats{}
	for _, op := range report.Operations {
		byOp[op.Operation] = op
	}
	assert.NotContains(t, byOp, "old")
	assert.Equal(t, 50, byOp["new"].Count)
	assert.Equal(t, 1, byOp["overflow"].Count)
}

func TestMonitor_WindowNeverExceedsMax(t *testing.T) {
	m := New(WithMaxSamples(64))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		tr := m.Start(fmt.Sprintf("op%d", i%7))
		tr.End(ctx, nil)
	}

	assert.LessOrEqual(t, m.SampleCount(), 64)
}

func TestMonitor_EndIdempotent(t *testing.T) {
	m := New()
	ctx := context.Background()

	tr := m.Start("op")
	tr.End(ctx, nil)
	tr.End(ctx, nil)

	assert.Equal(t, 1, m.SampleCount())
}

func TestMonitor_Report(t *testing.T) {
	m := New()
	ctx := context.Background()

	tr := m.Start("get_balance")
	tr.SetCacheHit(true)
	tr.End(ctx, nil)

	tr = m.Start("record_transaction")
	tr.SetErrorCode("DATABASE_ERROR")
	tr.End(ctx, errors.New("db down"))

	report := m.Report()
	require.Len(t, report.Operations, 2)
	assert.Equal(t, 2, report.SampleCount)
	assert.Greater(t, report.HeapAllocBytes, uint64(0))
	assert.Greater(t, report.NumGoroutine, 0)

	// Sorted by operation name.
	assert.Equal(t, "get_balance", report.Operations[0].Operation)
	assert.Equal(t, "record_transaction", report.Operations[1].Operation)
	assert.Equal(t, 1.0, report.Operations[0].CacheHitRate)
	assert.Equal(t, 1.0, report.Operations[1].ErrorRate)
}

func TestMonitor_Reset(t *testing.T) {
	m := New()
	_ = m.Track(context.Background(), "op", func(ctx context.Context) error { return nil })

	m.Reset()
	assert.Equal(t, 0, m.SampleCount())
}
