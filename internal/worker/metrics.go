package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_workflow_runs_total",
			Help: "Total number of workflow runs by workflow and terminal status.",
		},
		[]string{"workflow", "status"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_workflow_retries_total",
			Help: "Total number of workflow run retries by workflow.",
		},
		[]string{"workflow"},
	)

	deferralsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_workflow_deferrals_total",
			Help: "Total number of tasks deferred to the wait queue by flow key.",
		},
		[]string{"flow_key"},
	)

	runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "a2s_workflow_run_duration_seconds",
			Help:    "Workflow run handler duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)
)
