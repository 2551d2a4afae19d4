package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "a2s_submissions_total",
		Help: "Total number of accepted story submissions.",
	})

	generationsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "a2s_generations_dispatched_total",
		Help: "Total number of generation workflow runs dispatched.",
	})

	picksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "a2s_story_picks_total",
			Help: "Total number of successful random story picks by mood.",
		},
		[]string{"mood"},
	)
)
