package metrics

import (
	"testing"

	"github.com/MarceloManteigass/EpanetAPI/core/factory"
)

type countingSink struct {
	trials, best, sims int
}

func (c *countingSink) RecordTrial(TrialResult) error           { c.trials++; return nil }
func (c *countingSink) RecordBest(BestObjective) error          { c.best++; return nil }
func (c *countingSink) RecordSimulation(SimulationResult) error { c.sims++; return nil }

type trialOnly struct{ n int }

func (t *trialOnly) RecordTrial(TrialResult) error { t.n++; return nil }

func TestNewMetricsSink(t *testing.T) {
	s, err := NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if _, ok := s.(NopSink); !ok {
		t.Fatalf("expected NopSink got %T", s)
	}
	s, err = NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("multi: %v", err)
	}
	m, ok := s.(*MultiSink)
	if !ok || len(m.Sinks) != 2 {
		t.Fatalf("expected MultiSink with 2 sinks, got %T", s)
	}
	if _, err := NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatalf("expected unknown type error")
	}
	if err := RegisterMetricsSink("nop", func(map[string]any) (MetricsSink, error) { return NopSink{}, nil }); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestMultiSinkForwarding(t *testing.T) {
	full := &countingSink{}
	partial := &trialOnly{}
	m := NewMultiSink(full, partial)
	if err := m.RecordTrial(TrialResult{}); err != nil {
		t.Fatalf("trial: %v", err)
	}
	if err := m.RecordBest(BestObjective{}); err != nil {
		t.Fatalf("best: %v", err)
	}
	if err := m.RecordSimulation(SimulationResult{}); err != nil {
		t.Fatalf("sim: %v", err)
	}
	if full.trials != 1 || full.best != 1 || full.sims != 1 || partial.n != 1 {
		t.Fatalf("unexpected forwarding %+v %+v", full, partial)
	}
}
