package metrics

import (
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// TrialResult describes one finished trial of a training run.
type TrialResult struct {
	RunID       string
	Iteration   int
	Objective   float64
	TotalEnergy float64
	FinalLevel  float64
	Improved    bool
	Failed      bool
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records trial results.
type MetricsSink interface {
	RecordTrial(res TrialResult) error
}

// BestObjective is the best objective of a run after an improvement.
type BestObjective struct {
	RunID     string
	Iteration int
	Objective float64
	Time      time.Time
}

// BestRecorder records improvements of the best objective.
type BestRecorder interface {
	RecordBest(b BestObjective) error
}

// SimulationResult is a completed simulation to be recorded as hourly series.
// Start is the wall-clock time mapped to hour 0.
type SimulationResult struct {
	RunID   string
	Results model.Results
	Start   time.Time
}

// SimulationRecorder records simulation series.
type SimulationRecorder interface {
	RecordSimulation(res SimulationResult) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTrial(TrialResult) error           { return nil }
func (NopSink) RecordBest(BestObjective) error          { return nil }
func (NopSink) RecordSimulation(SimulationResult) error { return nil }
