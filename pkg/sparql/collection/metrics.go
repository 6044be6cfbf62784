package collection

import (
	metricsutil "github.com/aleksaelezovic/sparqlexec/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type collectionMetrics struct {
	rowsSpilled prometheus.Counter
	spillRuns   prometheus.Counter
}

var metrics collectionMetrics

func init() {
	mr := metricsutil.Registry{R: prometheus.DefaultRegisterer}
	metrics = collectionMetrics{
		rowsSpilled: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "sparqlexec",
			Subsystem: "collection",
			Name:      "rows_spilled_total",
			Help:      `The number of entries moved from memory into the spill store.`,
		}),
		spillRuns: mr.NewCounter(prometheus.CounterOpts{
			Namespace: "sparqlexec",
			Subsystem: "collection",
			Name:      "sort_runs_total",
			Help: `The number of sorted runs written by external sorts.

Each run is merged back when the sorted output is replayed.
`,
		}),
	}
}
