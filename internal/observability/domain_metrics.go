package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_turns_total",
			Help: "Completed conversation turns by terminal status.",
		},
		[]string{"status"},
	)
	turnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_turn_duration_seconds",
			Help:    "End-to-end turn latency from question to terminal state.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
	)
	translationAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_translation_attempts_total",
			Help: "Total number of completion calls made by the translator.",
		},
	)
	translationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_translation_duration_seconds",
			Help:    "Completion call latency.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 15, 30},
		},
	)
	validationRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablechat_validation_rejections_total",
			Help: "Candidate SQL rejections by validation error kind.",
		},
		[]string{"kind"},
	)
	retriesExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_retries_exhausted_total",
			Help: "Turns that failed after exhausting translation retries.",
		},
	)
	executionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_execution_duration_seconds",
			Help:    "Query execution latency against the serving database.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)
	executionRowsReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tablechat_execution_rows_returned",
			Help:    "Rows returned per executed query.",
			Buckets: []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		},
	)
	executionTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablechat_execution_truncations_total",
			Help: "Executions that hit the configured row cap.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnDurationSeconds,
		translationAttemptsTotal,
		translationDurationSeconds,
		validationRejectionsTotal,
		retriesExhaustedTotal,
		executionDurationSeconds,
		executionRowsReturned,
		executionTruncationsTotal,
	)
}

func ObserveTurn(status string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(status).Inc()
	turnDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveTranslation(elapsed time.Duration) {
	translationAttemptsTotal.Inc()
	translationDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementValidationRejection(kind string) {
	validationRejectionsTotal.WithLabelValues(kind).Inc()
}

func IncrementRetriesExhausted() {
	retriesExhaustedTotal.Inc()
}

func ObserveExecution(rows int, truncated bool, elapsed time.Duration) {
	executionDurationSeconds.Observe(elapsed.Seconds())
	executionRowsReturned.Observe(float64(rows))
	if truncated {
		executionTruncationsTotal.Inc()
	}
}
