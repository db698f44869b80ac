package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var triageDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "forge_triage_decisions_total",
		Help: "Total number of triage decisions by action",
	},
	[]string{"action"},
)

// RecordTriageDecision counts one triage outcome.
func RecordTriageDecision(action string) {
	triageDecisionsTotal.WithLabelValues(action).Inc()
}
