package metrics

import (
	"context"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/events"
	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/infra/logger"
	"github.com/MarceloManteigass/EpanetAPI/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records completed
// simulations on sinks implementing SimulationRecorder. Trial results are
// recorded by the optimizer itself. It stops when the context is canceled
// or the bus is closed; the returned channel is closed on exit.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.SimulationRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, ok := ev.(events.SimulationEvent)
				if !ok {
					continue
				}
				if err := rec.RecordSimulation(coremetrics.SimulationResult{
					RunID:   e.RunID,
					Results: e.Results,
					Start:   e.Time.Truncate(24 * time.Hour),
				}); err != nil {
					log.Warnf("record simulation: %v", err)
				}
			}
		}
	}()
	return done
}
