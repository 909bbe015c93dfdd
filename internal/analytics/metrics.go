package analytics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsSavedTotal counts saved analytics records.
	RecordsSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_records_saved_total",
			Help: "Total number of analytics records saved",
		},
		[]string{"status_class", "cache"},
	)

	// RecordsDroppedTotal counts records dropped on buffer overflow.
	RecordsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_records_dropped_total",
			Help: "Total number of analytics records dropped",
		},
	)
)

func recordSaved(statusCode int, cacheHit bool) {
	class := strconv.Itoa(statusCode/100) + "xx"
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	RecordsSavedTotal.WithLabelValues(class, cache).Inc()
}

func recordDropped() {
	RecordsDroppedTotal.Inc()
}
