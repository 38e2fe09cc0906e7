package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReconcileOutcomes counts reconciliation attempts by entry point and audit
// outcome. Served on the same listener as the HTTP metrics.
var ReconcileOutcomes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: "payment",
		Name:      "reconcile_outcomes_total",
		Help:      "Reconciliation attempts by entry point and outcome.",
	},
	[]string{"entry", "outcome"},
)
