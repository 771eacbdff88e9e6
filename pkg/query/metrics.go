package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoanalyst_query_total",
		Help: "Total number of queries by outcome (success or error kind)",
	}, []string{"result"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autoanalyst_query_duration_seconds",
		Help:    "End-to-end duration of query() calls",
		Buckets: prometheus.DefBuckets,
	})

	fallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autoanalyst_query_fallback_total",
		Help: "Total number of queries answered by the rule-based fallback generator",
	})

	completionCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autoanalyst_completion_cache_total",
		Help: "Completion cache lookups by outcome",
	}, []string{"outcome"})
)
