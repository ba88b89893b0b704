package controller

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// OperationsTotal counts controller operations by outcome (ok, error, busy, invalid).
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionflow_controller_operations_total",
			Help: "Total number of workflow editor operations",
		},
		[]string{"op", "outcome"},
	)

	// GraphNodes tracks the node count of the last projection.
	GraphNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actionflow_graph_nodes",
			Help: "Number of actions in the current graph",
		},
		[]string{"product_id"},
	)

	// GraphEdges tracks the edge count of the last projection.
	GraphEdges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "actionflow_graph_edges",
			Help: "Number of relations in the current graph",
		},
		[]string{"product_id"},
	)
)

func init() {
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(GraphNodes)
	prometheus.MustRegister(GraphEdges)
}
