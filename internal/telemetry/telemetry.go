// Package telemetry holds the Prometheus collectors shared across packages.
// They register with the default registry, which the /metrics route serves.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "care_practice",
		Name:      "gateway_backend_failures_total",
		Help:      "Generation attempts that failed on a backend and moved to the next one.",
	}, []string{"backend"})

	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "care_practice",
		Name:      "generation_failures_total",
		Help:      "Generation calls where every backend failed.",
	})

	ClassificationsDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "care_practice",
		Name:      "classifications_degraded_total",
		Help:      "Counselor turns scored as all-zero because classification failed.",
	})

	TurnsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "care_practice",
		Name:      "turns_submitted_total",
		Help:      "Counselor turns accepted, by phase.",
	}, []string{"phase"})

	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "care_practice",
		Name:      "ledger_writes_total",
		Help:      "Ledger row writes by table and result.",
	}, []string{"table", "result"})
)
