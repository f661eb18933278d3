package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SourceFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodsim_source_fetches_total",
			Help: "Total remote input file retrievals",
		},
		[]string{"scheme", "status"},
	)

	RowsImported = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodsim_rows_imported_total",
			Help: "Total input rows stored",
		},
		[]string{"kind"},
	)

	RowsFlagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodsim_rows_flagged_total",
			Help: "Total imported rows carrying a quality flag",
		},
		[]string{"kind"},
	)

	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "floodsim_evaluations_total",
			Help: "Total policy evaluations",
		},
		[]string{"mode", "status"},
	)

	EvaluationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "floodsim_evaluation_seconds",
			Help:    "Policy evaluation latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		},
		[]string{"mode"},
	)

	SpillDays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floodsim_simulated_spill_days_total",
			Help: "Simulated days with uncontrolled spill",
		},
	)

	FloodDays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "floodsim_simulated_flood_days_total",
			Help: "Simulated days with release above the flood threshold",
		},
	)
)
