// Package metrics provides Prometheus metrics for the dialogue core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No session_id or request_id labels; cardinality stays bounded by the
// outcome set.

var (
	// TurnsTotal counts processed dialogue turns by outcome
	// (ok, fallback, failure).
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fixmantra_turns_total",
		Help: "Total number of dialogue turns processed, by outcome.",
	}, []string{"outcome"})

	// ClassifierErrorsTotal counts scorer failures recovered as
	// "no confident match".
	ClassifierErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmantra_classifier_errors_total",
		Help: "Total number of classifier scoring failures.",
	})

	// ScoreCacheHitsTotal counts ranked-candidate cache hits in the
	// classifier adapter.
	ScoreCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmantra_score_cache_hits_total",
		Help: "Total number of classifier score cache hits.",
	})

	// ActiveSessions tracks the current number of live sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fixmantra_active_sessions",
		Help: "Current number of sessions held in memory.",
	})
)

// Turn outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
	OutcomeFailure  = "failure"
)

// RecordTurn increments the turn counter for the given outcome.
func RecordTurn(outcome string) {
	TurnsTotal.WithLabelValues(outcome).Inc()
}

// RecordClassifierError increments the classifier failure counter.
func RecordClassifierError() {
	ClassifierErrorsTotal.Inc()
}

// RecordScoreCacheHit increments the score cache hit counter.
func RecordScoreCacheHit() {
	ScoreCacheHitsTotal.Inc()
}

// SetActiveSessions updates the live session gauge.
func SetActiveSessions(n int) {
	ActiveSessions.Set(float64(n))
}
