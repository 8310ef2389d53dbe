// Package events defines the optimization events emitted on the event bus.
//
// Available event types:
//   - TrialEvent: one reset-propose-simulate-score cycle finished
//   - BestEvent: a trial improved the best objective of a training run
//   - SimulationEvent: a simulation produced a result bundle
package events

import "time"

// Event is implemented by all optimization events.
type Event interface {
	EventTime() time.Time
}
