package apikey

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIKeyValidationsTotal counts validations by result.
	APIKeyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikey_validations_total",
			Help: "Total number of API key validations",
		},
		[]string{"result"},
	)
)

func recordValidation(result string) {
	APIKeyValidationsTotal.WithLabelValues(result).Inc()
}
