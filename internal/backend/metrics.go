package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamCallsTotal counts upstream calls by method and outcome.
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_upstream_calls_total",
			Help: "Total number of upstream calls",
		},
		[]string{"method", "status"},
	)

	// UpstreamCallDuration observes upstream call latency.
	UpstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backend_upstream_call_duration_seconds",
			Help:    "Upstream call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func recordCall(method, status string, elapsed time.Duration) {
	UpstreamCallsTotal.WithLabelValues(method, status).Inc()
	UpstreamCallDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
