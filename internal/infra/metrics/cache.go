package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cacheRequestsTotal) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Read-cache lookups by cache name and outcome.",
	},
	[]string{"cache", "outcome"}, // 'hit', 'miss'
)

func IncCacheRequest(cache, outcome string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(outcome)).Inc()
}
