package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with an in-process LRU-bounded map and
// a periodic sweep for expired entries.
type MemoryStore struct {
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List

	sweeper *time.Ticker
	done    chan struct{}
	closed  bool
}

type memoryEntry struct {
	key  string
	resp *CachedResponse
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMaxEntries bounds the store size; exceeding it evicts the least
// recently used entry.
func WithMaxEntries(n int) MemoryOption {
	return func(s *MemoryStore) {
		s.maxEntries = n
	}
}

// WithSweepInterval sets the expired-entry sweep interval.
func WithSweepInterval(interval time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		s.sweeper.Reset(interval)
	}
}

// WithMemoryClock sets the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an in-memory cache store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		maxEntries: 10000,
		now:        time.Now,
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		sweeper:    time.NewTicker(time.Minute),
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	go s.sweepLoop()

	return s
}

// Get implements Store. Expired entries report a miss but are left in
// place for the sweep.
func (s *MemoryStore) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		recordLookup("memory", "miss")
		return nil, false, nil
	}

	entry := elem.Value.(*memoryEntry)
	if entry.resp.IsExpired(s.now()) {
		recordLookup("memory", "expired")
		return nil, false, nil
	}

	s.order.MoveToFront(elem)
	recordLookup("memory", "hit")
	return entry.resp, true, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key string, resp *CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		elem.Value.(*memoryEntry).resp = resp
		s.order.MoveToFront(elem)
		return nil
	}

	elem := s.order.PushFront(&memoryEntry{key: key, resp: resp})
	s.entries[key] = elem

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.evictOldest()
	}

	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.entries[key]; ok {
		s.removeElement(elem)
	}
	return nil
}

// Close implements Store. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.sweeper.Stop()
	close(s.done)

	return nil
}

// Len returns the number of entries, including expired ones not yet
// swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictOldest removes the least recently used entry.
// Caller must hold s.mu.
func (s *MemoryStore) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	s.removeElement(back)
	recordEviction("memory")
}

// removeElement removes an entry. Caller must hold s.mu.
func (s *MemoryStore) removeElement(elem *list.Element) {
	entry := elem.Value.(*memoryEntry)
	delete(s.entries, entry.key)
	s.order.Remove(elem)
}

func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.sweeper.C:
			s.Sweep()
		case <-s.done:
			return
		}
	}
}

// Sweep removes all expired entries.
func (s *MemoryStore) Sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var next *list.Element
	for elem := s.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		if elem.Value.(*memoryEntry).resp.IsExpired(now) {
			s.removeElement(elem)
		}
	}
}
