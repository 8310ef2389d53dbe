package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/events"
	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	"github.com/MarceloManteigass/EpanetAPI/internal/eventbus"
)

type simSink struct {
	coremetrics.NopSink
	mu   sync.Mutex
	sims []coremetrics.SimulationResult
}

func (s *simSink) RecordSimulation(res coremetrics.SimulationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sims = append(s.sims, res)
	return nil
}

func TestStartEventCollector(t *testing.T) {
	bus := eventbus.New[events.Event](8)
	sink := &simSink{}
	done := StartEventCollector(context.Background(), bus, sink)

	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	bus.Publish(events.TrialEvent{RunID: "r1", Time: at})
	bus.Publish(events.SimulationEvent{RunID: "r1", Results: model.Results{Tanks: []model.TankResult{{ID: "T1"}}}, Time: at})
	bus.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("collector did not stop")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.sims) != 1 {
		t.Fatalf("expected 1 simulation, got %d", len(sink.sims))
	}
	if !sink.sims[0].Start.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %v", sink.sims[0].Start)
	}
}

type trialOnlySink struct{}

func (trialOnlySink) RecordTrial(coremetrics.TrialResult) error { return nil }

func TestStartEventCollector_NoRecorder(t *testing.T) {
	bus := eventbus.New[events.Event](1)
	done := StartEventCollector(context.Background(), bus, trialOnlySink{})
	select {
	case <-done:
	default:
		t.Fatalf("collector should not start without a simulation recorder")
	}
}
