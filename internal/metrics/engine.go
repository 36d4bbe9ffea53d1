package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching engine metrics.
var (
	ResultCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_total",
			Help:      "Candidate result cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ResultCacheEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_evictions_total",
			Help:      "Entries evicted from the candidate result cache",
		},
	)

	OptimizationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimizations_total",
			Help:      "Optimizations applied to candidate queries",
		},
		[]string{"optimization"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end ranking pipeline duration",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation", "status"},
	)

	BatchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_queries_total",
			Help:      "Per-query outcomes inside batch executions",
		},
		[]string{"status"},
	)

	ProfilesMissingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_missing_total",
			Help:      "Candidates dropped because the profile store had no record",
		},
	)

	PatternsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "query_patterns_tracked",
			Help:      "Query patterns currently held in the frequency table",
		},
	)

	SchedulerRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Background maintenance runs",
		},
		[]string{"task", "status"}, // "ok" / "error" / "skipped"
	)

	WeightUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_updates_total",
			Help:      "Per-user weight adjustments applied",
		},
	)
)

var engineMetricsRegistered bool

// RegisterEngineMetrics registers engine metrics. Must be called once from main.
func RegisterEngineMetrics() {
	if engineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ResultCacheTotal,
		ResultCacheEvictionsTotal,
		OptimizationsTotal,
		SearchDuration,
		BatchQueriesTotal,
		ProfilesMissingTotal,
		PatternsTracked,
		SchedulerRunsTotal,
		WeightUpdatesTotal,
	)
	engineMetricsRegistered = true
}
