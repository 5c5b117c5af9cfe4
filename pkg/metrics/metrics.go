// Package metrics exposes the pipeline's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal counts finished pipeline runs by outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olap_horarios",
		Name:      "runs_total",
		Help:      "Finished ETL runs by status.",
	}, []string{"status"})

	// RowsProcessed counts rows emitted per stage.
	RowsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olap_horarios",
		Name:      "rows_processed_total",
		Help:      "Rows emitted by each pipeline stage.",
	}, []string{"stage"})

	// RowErrors counts row-scoped errors per stage.
	RowErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olap_horarios",
		Name:      "row_errors_total",
		Help:      "Rows rejected by each pipeline stage.",
	}, []string{"stage"})

	// RunDuration observes end-to-end run latency.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "olap_horarios",
		Name:      "run_duration_seconds",
		Help:      "End-to-end ETL run duration.",
		Buckets:   prometheus.DefBuckets,
	})
)
