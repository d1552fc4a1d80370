package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_requests_total",
			Help: "Total number of execution requests",
		},
		[]string{"language", "status"}, // status: "ok", "unsupported", "runtime_down", "staging_failed", "internal"
	)

	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "executor_unit_duration_seconds",
			Help:    "Wall time of one execution unit, build and run included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		},
		[]string{"language", "outcome"},
	)

	CleanupFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_cleanup_failures_total",
			Help: "Execution units whose files could not be removed right after the run",
		},
		[]string{"runtime"},
	)

	Sweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "executor_sweeps_total",
			Help: "Periodic namespace sweeps per runtime",
		},
		[]string{"runtime", "result"}, // result: "ok", "failed", "skipped"
	)
)
