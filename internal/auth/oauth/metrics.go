package oauth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OAuthIntrospectionsTotal counts introspections by result.
	OAuthIntrospectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_introspections_total",
			Help: "Total number of OAuth2 token introspections",
		},
		[]string{"result"},
	)
)

func recordIntrospection(result string) {
	OAuthIntrospectionsTotal.WithLabelValues(result).Inc()
}
