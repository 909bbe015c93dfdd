package jwt

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JWTValidationsTotal counts token validations by result.
	JWTValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwt_validations_total",
			Help: "Total number of JWT validations",
		},
		[]string{"result"},
	)
)

func recordValidation(result string) {
	JWTValidationsTotal.WithLabelValues(result).Inc()
}
