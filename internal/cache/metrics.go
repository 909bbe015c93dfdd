package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookupsTotal counts cache lookups by result.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"store", "result"},
	)

	// CacheEvictionsTotal counts size-bound evictions.
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache entries evicted by the size bound",
		},
		[]string{"store"},
	)
)

func recordLookup(store, result string) {
	CacheLookupsTotal.WithLabelValues(store, result).Inc()
}

func recordEviction(store string) {
	CacheEvictionsTotal.WithLabelValues(store).Inc()
}
