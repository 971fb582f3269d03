package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks lookup cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookup_cache_hits_total",
			Help: "Total number of lookup cache hits",
		},
	)

	// CacheMisses tracks lookup cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookup_cache_misses_total",
			Help: "Total number of lookup cache misses",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_errors_total",
			Help: "Total number of lookup cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
