package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries bounds CAS retry attempts under high contention.
const maxCASRetries = 100

// window is an immutable counter snapshot. Increments replace the
// stored pointer via compare-and-swap so concurrent requests to the
// same key never over-admit.
type window struct {
	count  int64
	start  time.Time
	length time.Duration
}

func (w *window) expired(now time.Time) bool {
	return !now.Before(w.start.Add(w.length))
}

// MemoryStore implements Store with in-process counters.
type MemoryStore struct {
	data    sync.Map
	cleanup *time.Ticker
	done    chan struct{}
	mu      sync.Mutex
	closed  bool

	// now is swappable for tests.
	now func() time.Time
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithCleanupInterval sets the expired-window sweep interval.
func WithCleanupInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.cleanup.Reset(interval)
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory counter store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		cleanup: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(ctx context.Context, key string, windowLen time.Duration) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	now := s.now()
	start := windowStart(now, windowLen)

	for retries := 0; retries < maxCASRetries; retries++ {
		value, ok := s.data.Load(key)
		if !ok {
			fresh := &window{count: 1, start: start, length: windowLen}
			if actual, loaded := s.data.LoadOrStore(key, fresh); loaded {
				value = actual
			} else {
				return 1, start, nil
			}
		}

		w := value.(*window)

		// Expired window: reset rather than increment.
		if !w.start.Equal(start) {
			fresh := &window{count: 1, start: start, length: windowLen}
			if s.data.CompareAndSwap(key, w, fresh) {
				return 1, start, nil
			}
			continue
		}

		next := &window{count: w.count + 1, start: w.start, length: w.length}
		if s.data.CompareAndSwap(key, w, next) {
			return next.count, next.start, nil
		}
	}

	return 0, time.Time{}, fmt.Errorf("increment failed for %s: max retries (%d) exceeded", key, maxCASRetries)
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, key string, windowLen time.Duration) (int64, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return 0, time.Time{}, err
	}

	start := windowStart(s.now(), windowLen)

	value, ok := s.data.Load(key)
	if !ok {
		return 0, start, nil
	}

	w := value.(*window)
	if !w.start.Equal(start) {
		return 0, start, nil
	}

	return w.count, w.start, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.data.Delete(key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cleanup.Stop()
	close(s.done)

	return nil
}

// Size returns the number of tracked keys.
func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.cleanup.C:
			s.sweep()
		case <-s.done:
			return
		}
	}
}

// sweep drops windows whose own length has elapsed. Counters inside a
// live window are never touched; expired ones are otherwise reset
// lazily on the next increment, so this only reclaims memory for keys
// that stopped arriving.
func (s *MemoryStore) sweep() {
	now := s.now()

	s.data.Range(func(key, value interface{}) bool {
		w := value.(*window)
		if w.expired(now) {
			s.data.Delete(key)
		}
		return true
	})
}
