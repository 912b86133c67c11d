package services

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-call-agent/internal/domain"
)

var (
	// callOps counts applied list operations by kind
	// (create, update, delete, status).
	callOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_operations_total",
			Help: "Total number of applied call list operations.",
		},
		[]string{"op"},
	)

	// callTransitions counts status changes by target status.
	callTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calls_status_transitions_total",
			Help: "Total number of call status changes by target status.",
		},
		[]string{"status"},
	)

	// callsByStatus gauges the current list size per status.
	callsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calls_current",
			Help: "Current number of calls per status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(callOps, callTransitions, callsByStatus)
}

// observeCounts publishes per-status counts to the calls_current gauge.
func observeCounts(counts map[domain.CallStatus]int64) {
	for _, s := range domain.Statuses {
		callsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
