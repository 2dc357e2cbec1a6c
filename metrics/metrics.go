// Package metrics exposes Prometheus instrumentation for the wallet engine.
//
// Everything is registered via promauto at package init and served by the
// /metrics endpoint in the api package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for AppliesTotal.
const (
	OutcomeApplied   = "applied"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

var (
	// AppliesTotal counts transaction submissions by type and outcome.
	AppliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "applies_total",
		Help:      "Transaction submissions by type and outcome.",
	}, []string{"type", "outcome"})

	// ApplyDuration observes end-to-end apply latency, lock wait included.
	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "wallet",
		Name:      "apply_duration_seconds",
		Help:      "End-to-end apply latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	// CheckpointsTotal counts checkpoint snapshots written.
	CheckpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "checkpoints_total",
		Help:      "Checkpoint snapshots written.",
	})

	// VerifyTotal counts verifier runs by result (match / mismatch).
	// A nonzero mismatch count is an alert condition.
	VerifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "wallet",
		Name:      "verify_total",
		Help:      "Replay verification runs by result.",
	}, []string{"result"})
)
