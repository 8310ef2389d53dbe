package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/floats"

	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
)

// PromSink records training and simulation results in Prometheus metrics.
type PromSink struct {
	trials   *prometheus.CounterVec
	duration prometheus.Histogram
	best     prometheus.Gauge
	energy   *prometheus.GaugeVec
	level    *prometheus.GaugeVec
}

// NewPromSink registers the metrics on the default Prometheus registerer.
// The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// register returns the collector already registered under the same name
// when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	trials, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trials_total",
		Help: "Number of optimization trials by outcome",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "trial_duration_seconds",
		Help:    "Wall-clock duration of an optimization trial",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	}))
	if err != nil {
		return nil, err
	}
	best, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "best_objective",
		Help: "Best objective of the current training run",
	}))
	if err != nil {
		return nil, err
	}
	energy, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pump_energy_total",
		Help: "Energy used by a pump over the last simulated day",
	}, []string{"pump_id"}))
	if err != nil {
		return nil, err
	}
	level, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tank_final_level",
		Help: "Tank level at the end of the last simulated day",
	}, []string{"tank_id"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{trials: trials, duration: duration, best: best, energy: energy, level: level}, nil
}

func outcome(res coremetrics.TrialResult) string {
	switch {
	case res.Failed:
		return "failed"
	case res.Improved:
		return "improved"
	default:
		return "rejected"
	}
}

// RecordTrial counts the trial and observes its duration.
func (s *PromSink) RecordTrial(res coremetrics.TrialResult) error {
	s.trials.WithLabelValues(outcome(res)).Inc()
	s.duration.Observe(res.Duration.Seconds())
	return nil
}

// RecordBest sets the best objective gauge.
func (s *PromSink) RecordBest(b coremetrics.BestObjective) error {
	s.best.Set(b.Objective)
	return nil
}

// RecordSimulation exports per pump energy and per tank final level.
func (s *PromSink) RecordSimulation(res coremetrics.SimulationResult) error {
	for _, p := range res.Results.Pumps {
		s.energy.WithLabelValues(p.ID).Set(floats.Sum(p.Energy))
	}
	for _, t := range res.Results.Tanks {
		if n := len(t.Level); n > 0 {
			s.level.WithLabelValues(t.ID).Set(t.Level[n-1])
		}
	}
	return nil
}
