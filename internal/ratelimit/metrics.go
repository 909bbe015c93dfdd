package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitChecksTotal counts rule evaluations by outcome.
	RateLimitChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_checks_total",
			Help: "Total number of rate limit rule evaluations",
		},
		[]string{"rule", "result"},
	)
)

func recordCheck(ruleID, result string) {
	RateLimitChecksTotal.WithLabelValues(ruleID, result).Inc()
}
