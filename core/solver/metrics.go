package solver

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration      *prometheus.HistogramVec
	solvesTotal        *prometheus.CounterVec
	capacityRejections prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "solver_solve_duration_seconds",
			Help:    "Wall-clock duration of exact solver invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tier"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solver_solves_total",
			Help: "Number of solver invocations by resulting status",
		},
		[]string{"status"},
	)
	capacity := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "solver_capacity_rejections_total",
			Help: "Problems rejected from the exact solver by the variable ceiling",
		},
	)
	return dur, total, capacity
}

func init() {
	solveDuration, solvesTotal, capacityRejections = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers solver metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, solvesTotal, capacityRejections)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, solvesTotal, capacityRejections = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
