// Package observability exposes prometheus metrics for the reconciliation
// engine. Metrics are registered once via promauto and served through the
// API server's /metrics endpoint.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Reconciliation Metrics ─────────────────────────────────────────────────

// RunsTotal counts reconciliation runs by mode and outcome.
var RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "catalogd",
	Subsystem: "reconcile",
	Name:      "runs_total",
	Help:      "Total reconciliation runs by mode (dry|execute) and outcome (ok|error|rejected).",
}, []string{"mode", "outcome"})

// ActionsExecuted counts executed convergence actions by type.
var ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "catalogd",
	Subsystem: "reconcile",
	Name:      "actions_total",
	Help:      "Total executed convergence actions by action type.",
}, []string{"action"})

// ItemFailures counts plan items whose execution failed.
var ItemFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "catalogd",
	Subsystem: "reconcile",
	Name:      "item_failures_total",
	Help:      "Total plan items that failed during execution.",
})

// RunDuration tracks wall-clock run duration.
var RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "catalogd",
	Subsystem: "reconcile",
	Name:      "run_duration_seconds",
	Help:      "Wall-clock duration of reconciliation runs.",
	Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
})

// ─── Drift Metrics ──────────────────────────────────────────────────────────

// Drift reports the most recent audit's drift counts by kind.
var Drift = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "catalogd",
	Subsystem: "audit",
	Name:      "drift",
	Help:      "Drift counts from the most recent audit, by kind.",
}, []string{"kind"})

// RecordDrift updates the drift gauges from an audit pass.
func RecordDrift(missingInLedger, missingInPlatform, fieldMismatches, duplicateLinkage int) {
	Drift.WithLabelValues("missing_in_ledger").Set(float64(missingInLedger))
	Drift.WithLabelValues("missing_in_platform").Set(float64(missingInPlatform))
	Drift.WithLabelValues("field_mismatches").Set(float64(fieldMismatches))
	Drift.WithLabelValues("duplicate_linkage").Set(float64(duplicateLinkage))
}
