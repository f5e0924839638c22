package fleet

import "github.com/prometheus/client_golang/prometheus"

var (
	aggregationPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_aggregation_passes_total",
		Help: "Number of full rollup aggregation passes.",
	})
	sumCheckFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fleet_aggregation_sumcheck_failures_total",
		Help: "Rollup passes whose sum invariant check failed.",
	})
	clusterBuilds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_cluster_builds_total",
		Help: "Geo-cluster rebuilds by mode.",
	}, []string{"mode"})
)

func init() {
	prometheus.MustRegister(aggregationPasses)
	prometheus.MustRegister(sumCheckFailures)
	prometheus.MustRegister(clusterBuilds)
}
