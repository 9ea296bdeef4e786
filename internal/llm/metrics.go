package llm

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kira_llm_requests_total",
			Help: "Total chat requests attempted per provider",
		},
		[]string{"provider", "class"},
	)

	metricErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kira_llm_errors_total",
			Help: "Total failed chat requests per provider",
		},
		[]string{"provider", "class"},
	)

	metricFailovers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kira_llm_failovers_total",
			Help: "Times a chat call fell through to a lower-priority provider",
		},
	)

	metricExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kira_llm_exhausted_total",
			Help: "Times every configured provider failed for one call",
		},
	)

	metricLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kira_llm_request_duration_seconds",
			Help:    "Chat request duration per provider",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
