package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kira_pipeline_turns_total",
		Help: "Completed conversational turns.",
	})
	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kira_pipeline_fallback_total",
		Help: "Turns answered with the in-persona fallback because every provider failed.",
	})
	reEditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kira_pipeline_re_edits_total",
		Help: "Re-edit passes triggered by a failing rating.",
	})
	phaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kira_pipeline_phase_duration_seconds",
		Help:    "Wall time per pipeline phase.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	}, []string{"phase"})
	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kira_pipeline_turn_duration_seconds",
		Help:    "Wall time from input to final frame.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 8),
	})
	ratingScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "kira_pipeline_rating_overall",
		Help:    "Heuristic overall score of delivered responses.",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})
)
