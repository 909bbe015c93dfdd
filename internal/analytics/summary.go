package analytics

import (
	"context"
	"sort"
	"time"
)

// Metrics aggregates call records over a time range.
type Metrics struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	TotalRequests int     `json:"totalRequests"`
	TotalErrors   int     `json:"totalErrors"`
	ErrorRate     float64 `json:"errorRate"`
	CacheHits     int     `json:"cacheHits"`
	BotRequests   int     `json:"botRequests"`

	AvgLatencyMs float64 `json:"avgLatencyMs"`
	P50LatencyMs float64 `json:"p50LatencyMs"`
	P95LatencyMs float64 `json:"p95LatencyMs"`
	P99LatencyMs float64 `json:"p99LatencyMs"`
}

// PathStats summarizes one path for the dashboard.
type PathStats struct {
	Path         string  `json:"path"`
	Requests     int     `json:"requests"`
	Errors       int     `json:"errors"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
}

// DashboardSummary is the dashboard payload: overall metrics plus the
// top paths by volume, error count, and latency.
type DashboardSummary struct {
	Metrics Metrics `json:"metrics"`

	TopByVolume  []PathStats `json:"topByVolume"`
	TopByErrors  []PathStats `json:"topByErrors"`
	TopByLatency []PathStats `json:"topByLatency"`
}

// Aggregator computes metrics and summaries from a repository.
type Aggregator struct {
	repo Repository
	topN int
}

// NewAggregator creates an aggregator returning at most topN paths per
// dashboard list.
func NewAggregator(repo Repository, topN int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	return &Aggregator{repo: repo, topN: topN}
}

// GetMetrics aggregates records in [from, to).
func (a *Aggregator) GetMetrics(ctx context.Context, from, to time.Time) (Metrics, error) {
	records, err := a.repo.Query(ctx, from, to)
	if err != nil {
		return Metrics{}, err
	}
	return computeMetrics(records, from, to), nil
}

// GetDashboardSummary aggregates records in [from, to) into the
// dashboard payload.
func (a *Aggregator) GetDashboardSummary(ctx context.Context, from, to time.Time) (DashboardSummary, error) {
	records, err := a.repo.Query(ctx, from, to)
	if err != nil {
		return DashboardSummary{}, err
	}

	summary := DashboardSummary{
		Metrics: computeMetrics(records, from, to),
	}

	stats := collectPathStats(records)

	summary.TopByVolume = topN(stats, a.topN, func(a, b PathStats) bool {
		return a.Requests > b.Requests
	})
	summary.TopByErrors = topN(stats, a.topN, func(a, b PathStats) bool {
		return a.Errors > b.Errors
	})
	summary.TopByLatency = topN(stats, a.topN, func(a, b PathStats) bool {
		return a.AvgLatencyMs > b.AvgLatencyMs
	})

	return summary, nil
}

func computeMetrics(records []CallRecord, from, to time.Time) Metrics {
	m := Metrics{From: from, To: to, TotalRequests: len(records)}
	if len(records) == 0 {
		return m
	}

	var totalLatency time.Duration
	for _, r := range records {
		totalLatency += r.Latency
		if r.IsError() {
			m.TotalErrors++
		}
		if r.CacheHit {
			m.CacheHits++
		}
		if r.BotDetected {
			m.BotRequests++
		}
	}

	m.ErrorRate = float64(m.TotalErrors) / float64(m.TotalRequests)
	m.AvgLatencyMs = durationMs(totalLatency) / float64(len(records))

	latencies := sortByLatency(records)
	m.P50LatencyMs = durationMs(percentile(latencies, 0.50))
	m.P95LatencyMs = durationMs(percentile(latencies, 0.95))
	m.P99LatencyMs = durationMs(percentile(latencies, 0.99))

	return m
}

// percentile picks from a sorted slice using the nearest-rank method.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(float64(len(sorted))*p+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func collectPathStats(records []CallRecord) []PathStats {
	type acc struct {
		requests int
		errors   int
		latency  time.Duration
	}

	byPath := make(map[string]*acc)
	for _, r := range records {
		a := byPath[r.Path]
		if a == nil {
			a = &acc{}
			byPath[r.Path] = a
		}
		a.requests++
		a.latency += r.Latency
		if r.IsError() {
			a.errors++
		}
	}

	stats := make([]PathStats, 0, len(byPath))
	for path, a := range byPath {
		stats = append(stats, PathStats{
			Path:         path,
			Requests:     a.requests,
			Errors:       a.errors,
			AvgLatencyMs: durationMs(a.latency) / float64(a.requests),
		})
	}
	return stats
}

func topN(stats []PathStats, n int, less func(a, b PathStats) bool) []PathStats {
	out := make([]PathStats, len(stats))
	copy(out, stats)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
