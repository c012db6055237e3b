package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EdgeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popular_edge_mutations_total",
		Help: "Edge operations by kind, op and result (applied, noop, error).",
	}, []string{"kind", "op", "result"})

	ReconcileRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popular_reconcile_repairs_total",
		Help: "Single-sided edge writes issued by the reconciler to restore symmetry.",
	}, []string{"kind"})

	DanglingEdges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "popular_reconcile_dangling_edges_total",
		Help: "Edges found pointing at an entity that no longer exists.",
	}, []string{"kind"})
)

const (
	ResultApplied = "applied"
	ResultNoop    = "noop"
	ResultError   = "error"
)

// Edge records the outcome of one edge operation.
func Edge(kind, op, result string) {
	EdgeMutations.WithLabelValues(kind, op, result).Inc()
}
