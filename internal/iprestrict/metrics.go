package iprestrict

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IPChecksTotal counts IP access checks by result.
	IPChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ip_restriction_checks_total",
			Help: "Total number of IP restriction checks",
		},
		[]string{"result"},
	)
)

func recordCheck(result string) {
	IPChecksTotal.WithLabelValues(result).Inc()
}
