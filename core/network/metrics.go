package network

import "github.com/prometheus/client_golang/prometheus"

var (
	hydraulicSessions *prometheus.CounterVec
	hydraulicSteps    prometheus.Counter
	runDuration       prometheus.Histogram
)

func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram) {
	sessions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydraulic_sessions_total",
			Help: "Number of stepped hydraulic sessions by result",
		},
		[]string{"result"},
	)
	steps := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hydraulic_steps_total",
			Help: "Number of hydraulic time steps solved",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydraulic_run_duration_seconds",
			Help:    "Wall-clock duration of a simulation run",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
	)
	return sessions, steps, dur
}

func init() {
	hydraulicSessions, hydraulicSteps, runDuration = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the simulation metrics on the provided
// registry. If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(hydraulicSessions, hydraulicSteps, runDuration)
}

// ResetMetrics reinitializes the collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	hydraulicSessions, hydraulicSteps, runDuration = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
