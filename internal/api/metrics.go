package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparql_proxy_cache_hits_total",
		Help: "Queries answered from the cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sparql_proxy_cache_misses_total",
		Help: "Queries forwarded to the backend.",
	})
)
