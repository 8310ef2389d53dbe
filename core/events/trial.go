package events

import (
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// TrialEvent is published after every trial. Err is set when the trial was
// aborted by a solver failure, in which case the scores are zero.
type TrialEvent struct {
	RunID       string
	Iteration   int
	Objective   float64
	TotalEnergy float64
	FinalLevel  float64
	Improved    bool
	Duration    time.Duration
	Err         error
	Time        time.Time
}

func (e TrialEvent) EventTime() time.Time { return e.Time }

// BestEvent is published when a trial improves the best objective.
type BestEvent struct {
	RunID     string
	Iteration int
	Objective float64
	Schedule  model.Schedule
	Time      time.Time
}

func (e BestEvent) EventTime() time.Time { return e.Time }

// SimulationEvent carries the results of a completed simulation.
type SimulationEvent struct {
	RunID   string
	Results model.Results
	Time    time.Time
}

func (e SimulationEvent) EventTime() time.Time { return e.Time }
