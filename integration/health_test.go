package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckOnceMarksHealthyOnSuccess(t *testing.T) {
	m := NewMonitor()
	m.Register("svc", CheckerFunc(func(ctx context.Context) error { return nil }))
	rec := m.CheckOnce(context.Background(), "svc")
	require.Equal(t, StatusHealthy, rec.Status)
	require.Equal(t, 0, rec.ConsecutiveFailures)
	require.Equal(t, 0, rec.ReconnectAttempts)
}

func TestCheckOnceDegradesThenDisconnectsAfterMaxAttempts(t *testing.T) {
	m := NewMonitor()
	m.maxReconnectAttempts = 2
	failing := errors.New("connection refused")
	m.Register("svc", CheckerFunc(func(ctx context.Context) error { return failing }))

	first := m.CheckOnce(context.Background(), "svc")
	require.Equal(t, StatusDegraded, first.Status)
	require.Equal(t, 1, first.ReconnectAttempts)
	require.Equal(t, 1, first.ConsecutiveFailures)
	require.True(t, first.Reconnecting)

	second := m.CheckOnce(context.Background(), "svc")
	require.Equal(t, StatusDisconnected, second.Status)
	require.Equal(t, 2, second.ReconnectAttempts)
	require.Equal(t, 2, second.ConsecutiveFailures)
}

func TestCheckOnceBackoffScheduleMatchesSpec(t *testing.T) {
	m := NewMonitor()
	m.maxReconnectAttempts = 10
	failing := errors.New("connection refused")
	m.Register("svc", CheckerFunc(func(ctx context.Context) error { return failing }))

	wantDelays := []float64{5, 10, 20, 40, 80}
	for i, want := range wantDelays {
		before := time.Now()
		rec := m.CheckOnce(context.Background(), "svc")
		got := rec.NextCheck.Sub(before).Seconds()
		require.InDeltaf(t, want, got, 1.0, "attempt %d: want ~%.0fs delay, got %.2fs", i, want, got)
	}
}

func TestBackoffDelayCapsAtMax(t *testing.T) {
	m := NewMonitor()
	m.maxBackoff = 300_000_000_000 // 300s in ns
	require.LessOrEqual(t, m.backoffDelay(20), m.maxBackoff)
}

func TestSnapshotUnknownServiceBeforeFirstCheck(t *testing.T) {
	m := NewMonitor()
	m.Register("svc", CheckerFunc(func(ctx context.Context) error { return nil }))
	snap := m.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, StatusUnknown, snap[0].Status)
}
