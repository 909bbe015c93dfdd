package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreIncrement(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	count, _, err := s.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, _, err = s.Increment(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Separate keys have separate counters.
	count, _, err = s.Increment(ctx, "k2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreWindowRollover(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _, err := s.Increment(ctx, "k", time.Minute)
		require.NoError(t, err)
	}

	count, start, err := s.Count(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), start)

	// Advance past the window boundary: the counter resets.
	now = now.Add(time.Minute)

	count, start, err = s.Count(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC), start)

	count, _, err = s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreCountIsSideEffectFree(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	_, _, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		count, _, err := s.Count(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	_, _, err := s.Increment(ctx, "k", time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Reset(ctx, "k"))

	count, _, err := s.Count(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMemoryStoreConcurrentIncrements(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, _, err := s.Increment(ctx, "shared", time.Hour)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	count, _, err := s.Count(ctx, "shared", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines*perGoroutine), count)
}

func TestMemoryStoreContextCancelled(t *testing.T) {
	s := NewMemoryStore()
	defer func() { _ = s.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Increment(ctx, "k", time.Minute)
	assert.Error(t, err)
}

func TestMemoryStoreCloseIdempotent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	_, _, err := s.Increment(ctx, "stale", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Size())

	now = now.Add(2 * time.Hour)
	s.sweep()

	assert.Equal(t, 0, s.Size())
}

func TestMemoryStoreSweepKeepsLiveLongWindows(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return now }))
	defer func() { _ = s.Close() }()

	ctx := context.Background()

	_, _, err := s.Increment(ctx, "k", 2*time.Hour)
	require.NoError(t, err)

	// Halfway through a two-hour window the counter is still live and
	// must survive the sweep.
	now = now.Add(90 * time.Minute)
	s.sweep()

	count, _, err := s.Increment(ctx, "k", 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Once the window itself elapses the sweep reclaims the key.
	now = now.Add(time.Hour)
	s.sweep()
	assert.Equal(t, 0, s.Size())
}
