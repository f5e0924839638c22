package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	keysGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_registered_keys",
		Help: "Number of registered cache keys.",
	})
	hitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_gets_total",
		Help: "Cache reads by key and serving mode (fresh, stale, wait).",
	}, []string{"key", "mode"})
	fetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_fetches_total",
		Help: "Completed fetches by key and outcome.",
	}, []string{"key", "outcome"})
	fetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_fetch_duration_seconds",
		Help:    "Fetch duration by key.",
		Buckets: prometheus.DefBuckets,
	}, []string{"key"})
	invalidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_invalidations_total",
		Help: "Invalidations received by topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(keysGauge)
	prometheus.MustRegister(hitsTotal)
	prometheus.MustRegister(fetchTotal)
	prometheus.MustRegister(fetchDuration)
	prometheus.MustRegister(invalidationsTotal)
}
