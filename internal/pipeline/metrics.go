package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageExecutionsTotal counts stage outcomes.
	StageExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_executions_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "outcome"},
	)
)

func recordStage(stage, outcome string) {
	StageExecutionsTotal.WithLabelValues(stage, outcome).Inc()
}
