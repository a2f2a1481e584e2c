// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// IntentExecutions counts dispatched intents. path is "fast" or "slow".
	IntentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_intent_executions_total",
			Help: "Total number of intent executions by intent, data path and status",
		},
		[]string{"intent", "path", "status"},
	)

	ProcedureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analytics_procedure_duration_seconds",
			Help:    "Duration of aggregation procedure calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"procedure", "status"},
	)

	// ModelCalls counts language-model calls. phase is "selection" or "answer".
	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_model_calls_total",
			Help: "Total number of language model calls by phase and status",
		},
		[]string{"phase", "status"},
	)

	ModelRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_model_retries_total",
			Help: "Number of two-phase sequences retried after a rate limit",
		},
	)

	EmptyAnswers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_empty_answers_total",
			Help: "Number of turns where the model produced no answer text",
		},
	)

	CategoryCacheLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analytics_cache_loads_total",
			Help: "Number of lazy cache population attempts by cache and status",
		},
		[]string{"cache", "status"},
	)
)
