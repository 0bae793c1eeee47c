package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(cacheHits, cacheMisses)
}

var (
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Cache hits per cache name.",
		},
		[]string{"cache"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Cache misses per cache name.",
		},
		[]string{"cache"},
	)
)

func ChatCacheHit()  { cacheHits.WithLabelValues("chat").Inc() }
func ChatCacheMiss() { cacheMisses.WithLabelValues("chat").Inc() }
