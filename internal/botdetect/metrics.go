package botdetect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BotDetectionsTotal counts bot classifications by type and method.
	BotDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_detections_total",
			Help: "Total number of requests classified as bots",
		},
		[]string{"bot_type", "method"},
	)
)

func recordDetection(botType, method string) {
	BotDetectionsTotal.WithLabelValues(botType, method).Inc()
}
