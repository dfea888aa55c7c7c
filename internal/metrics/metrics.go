// Package metrics provides Prometheus metrics for tubedigest.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
	OutcomeCacheHit = "cache_hit"
)

var (
	// SummarizeTotal counts gateway calls by outcome.
	SummarizeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tubedigest",
			Name:      "summarize_total",
			Help:      "Total number of summarization requests",
		},
		[]string{"outcome"},
	)

	// StepDuration measures the retrieve and generate steps.
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tubedigest",
			Name:      "gateway_step_duration_seconds",
			Help:      "Duration of gateway steps in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"step"},
	)

	// HistoryOpsTotal counts history store operations by outcome.
	HistoryOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tubedigest",
			Name:      "history_operations_total",
			Help:      "Total number of history operations",
		},
		[]string{"operation", "outcome"},
	)

	// SupersededTotal counts gateway responses discarded because a newer submission was made.
	SupersededTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tubedigest",
			Name:      "superseded_responses_total",
			Help:      "Total number of gateway responses discarded as stale",
		},
	)

	// ActiveSessions tracks sessions held in memory by the server.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tubedigest",
			Name:      "active_sessions",
			Help:      "Number of page sessions held in memory",
		},
	)
)

// RecordSummarize records a gateway call.
func RecordSummarize(outcome string) {
	SummarizeTotal.WithLabelValues(outcome).Inc()
}

// RecordStep records the duration of a gateway step.
func RecordStep(step string, seconds float64) {
	StepDuration.WithLabelValues(step).Observe(seconds)
}

// RecordHistory records a history operation.
func RecordHistory(operation string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	HistoryOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordSuperseded records a discarded stale response.
func RecordSuperseded() {
	SupersededTotal.Inc()
}
