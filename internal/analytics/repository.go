package analytics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository stores call records and serves range queries.
type Repository interface {
	// Save appends a record.
	Save(ctx context.Context, record CallRecord) error

	// Query returns records with Timestamp in [from, to).
	Query(ctx context.Context, from, to time.Time) ([]CallRecord, error)

	// DeleteOlderThan removes records before the cutoff and returns
	// how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Len returns the current record count.
	Len() int
}

// MemoryRepository keeps records in an in-memory slice bounded by
// maxRecords; exceeding the bound drops the oldest records.
type MemoryRepository struct {
	maxRecords int

	mu      sync.RWMutex
	records []CallRecord
}

// NewMemoryRepository creates a repository bounded at maxRecords.
// Zero or negative means unbounded.
func NewMemoryRepository(maxRecords int) *MemoryRepository {
	return &MemoryRepository{maxRecords: maxRecords}
}

// Save appends a record, evicting the oldest when over the bound.
func (m *MemoryRepository) Save(_ context.Context, record CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, record)
	if m.maxRecords > 0 && len(m.records) > m.maxRecords {
		overflow := len(m.records) - m.maxRecords
		m.records = append(m.records[:0:0], m.records[overflow:]...)
	}
	return nil
}

// Query returns records with Timestamp in [from, to).
func (m *MemoryRepository) Query(_ context.Context, from, to time.Time) ([]CallRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []CallRecord
	for _, r := range m.records {
		if !r.Timestamp.Before(from) && r.Timestamp.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// DeleteOlderThan removes records before the cutoff.
func (m *MemoryRepository) DeleteOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Records arrive roughly in timestamp order but are not guaranteed
	// sorted, so filter rather than binary-search.
	kept := m.records[:0]
	removed := 0
	for _, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

// Len returns the current record count.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// sortByLatency extracts the latencies sorted ascending, for
// percentile computation.
func sortByLatency(records []CallRecord) []time.Duration {
	latencies := make([]time.Duration, len(records))
	for i, r := range records {
		latencies[i] = r.Latency
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	return latencies
}
