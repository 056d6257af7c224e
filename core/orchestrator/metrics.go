package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationsTotal *prometheus.CounterVec
	fallbackTotal    *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec) {
	gens := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_generations_total",
			Help: "Number of schedule generations by terminal state",
		},
		[]string{"state"},
	)
	fb := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_fallback_invocations_total",
			Help: "Weekly sub-problems handed to the greedy fallback",
		},
		[]string{"reason"},
	)
	return gens, fb
}

func init() {
	generationsTotal, fallbackTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers orchestrator metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(generationsTotal, fallbackTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	generationsTotal, fallbackTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
