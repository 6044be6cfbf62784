package executor

import (
	metricsutil "github.com/aleksaelezovic/sparqlexec/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type executorMetrics struct {
	hashJoinBuildRows prometheus.Counter
	prefetchActive    prometheus.Gauge
	pathPairs         prometheus.Counter
	groups            prometheus.Counter
}

var metrics executorMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = executorMetrics{
		hashJoinBuildRows: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "sparqlexec",
			Subsystem: "executor",
			Name:      "hash_join_build_rows_total",
			Help:      `The number of rows loaded into hash join tables.`,
		}),
		prefetchActive: mr.NewGauge(prometheus.GaugeOpts{
			Namespace: "sparqlexec",
			Subsystem: "executor",
			Name:      "prefetch_active",
			Help:      `The number of prefetching iterations that are open.`,
		}),
		pathPairs: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "sparqlexec",
			Subsystem: "executor",
			Name:      "path_pairs_total",
			Help: `The number of distinct (start, end) pairs discovered by
property path evaluation, including pairs that were not reported.`,
		}),
		groups: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "sparqlexec",
			Subsystem: "executor",
			Name:      "groups_total",
			Help:      `The number of groups produced by GROUP BY.`,
		}),
	}
}
