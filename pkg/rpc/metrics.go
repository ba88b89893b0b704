package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestsTotal counts JSON-RPC calls by outcome (ok, remote_error, transport_error).
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "actionflow_rpc_requests_total",
			Help: "Total number of JSON-RPC calls issued to the record store",
		},
		[]string{"service", "method", "outcome"},
	)

	// RequestDuration tracks round-trip latency.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "actionflow_rpc_duration_seconds",
			Help:    "JSON-RPC round-trip latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDuration)
}
