package app

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarceloManteigass/EpanetAPI/config"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	coremon "github.com/MarceloManteigass/EpanetAPI/core/monitoring"
	"github.com/MarceloManteigass/EpanetAPI/core/solver"
	"github.com/MarceloManteigass/EpanetAPI/core/trials"
	"github.com/MarceloManteigass/EpanetAPI/infra/mqtt"
	"github.com/MarceloManteigass/EpanetAPI/pkg/export"
)

const exampleNetwork = "../infra/hydraulics/testdata/example_network.inp"

type recordingMonitor struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (r *recordingMonitor) CaptureException(_ error, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tags)
}
func (r *recordingMonitor) CapturePanic(any)    {}
func (r *recordingMonitor) Flush(time.Duration) {}

func useMonitor(t *testing.T) *recordingMonitor {
	t.Helper()
	m := &recordingMonitor{}
	coremon.Init(m)
	t.Cleanup(func() { coremon.Init(coremon.NopMonitor{}) })
	return m
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Network.InpFile = exampleNetwork
	cfg.Optimizer.Iterations = 12
	cfg.Optimizer.Seed = 5
	cfg.Trials = trials.Config{Backend: "jsonl", Path: filepath.Join(dir, "trials.jsonl")}
	cfg.Export.ResultsPath = filepath.Join(dir, "results.csv")
	cfg.Export.SchedulePath = filepath.Join(dir, "schedule.json")
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	s, err := New(cfg, opts...)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	t.Cleanup(func() {
		cancel()
		_ = s.Close()
	})
	return s
}

func TestOptimizeEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	pub := mqtt.NewMockPublisher()
	s := newService(t, cfg, WithPublisher(pub))

	rep, err := s.Optimize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 12, rep.Summary.Completed)
	assert.Zero(t, rep.Summary.Failed)
	assert.False(t, math.IsInf(rep.Best.Objective, 0))
	require.Len(t, rep.Results.Pumps, 2)
	require.Len(t, rep.Results.Tanks, 2)
	assert.Len(t, rep.Results.Pumps[0].Status, model.Increments)
	assert.Equal(t, []string{"PU1", "PU2"}, rep.Schedule.PumpIDs())

	assert.Equal(t, map[string][]int(rep.Schedule), pub.Messages)
	require.Len(t, rep.Deliveries, 2)
	assert.True(t, rep.Deliveries[0].Acknowledged)

	_, err = os.Stat(cfg.Export.ResultsPath)
	assert.NoError(t, err)
	sched, err := export.ReadScheduleFile(cfg.Export.SchedulePath)
	require.NoError(t, err)
	assert.Equal(t, rep.Schedule, sched)

	recs, err := s.Trials(context.Background(), trials.Query{RunID: rep.Summary.RunID})
	require.NoError(t, err)
	assert.Len(t, recs, 12)
	improved, err := s.Trials(context.Background(), trials.Query{RunID: rep.Summary.RunID, ImprovedOnly: true})
	require.NoError(t, err)
	assert.Equal(t, rep.Summary.Improvements, len(improved))
}

func TestOptimizeWithParallelWorkers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Optimizer.Workers = 3
	s := newService(t, cfg)

	rep, err := s.Optimize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, rep.Summary.Completed)
	assert.Equal(t, []string{"PU1", "PU2"}, s.Topology().Pumps)
}

func TestOptimizeReportsFinalEvaluationFailure(t *testing.T) {
	mon := useMonitor(t)
	cfg := testConfig(t)
	cfg.Optimizer.Iterations = 3
	tk := &solver.MockToolkit{PumpIDs: []string{"P1"}, TankIDs: []string{"T1"}}
	// New opens once, each trial once, the final evaluation is the fifth.
	tk.FailOn(solver.OpOpen, 5)
	pub := mqtt.NewMockPublisher()
	s := newService(t, cfg, WithToolkit(tk), WithPublisher(pub))

	rep, err := s.Optimize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, solver.ErrSolverFailure), "got %v", err)
	require.NotNil(t, rep)
	assert.Equal(t, 3, rep.Summary.Completed)
	assert.Empty(t, pub.Messages)
	require.Len(t, mon.tags, 1)
	assert.Equal(t, "final_evaluation", mon.tags[0]["stage"])
}

func TestOptimizeReportsPublishFailure(t *testing.T) {
	mon := useMonitor(t)
	cfg := testConfig(t)
	cfg.Optimizer.Iterations = 2
	pub := mqtt.NewMockPublisher()
	pub.FailIDs["PU1"] = true
	s := newService(t, cfg, WithPublisher(pub))

	rep, err := s.Optimize(context.Background())
	require.Error(t, err)
	require.NotNil(t, rep)
	assert.Len(t, rep.Results.Pumps, 2)
	require.Len(t, rep.Deliveries, 2)
	assert.Error(t, rep.Deliveries[0].Err)
	assert.True(t, rep.Deliveries[1].Acknowledged)
	require.Len(t, mon.tags, 1)
	assert.Equal(t, "publish", mon.tags[0]["stage"])
}

func TestSimulate(t *testing.T) {
	cfg := testConfig(t)
	s := newService(t, cfg)

	on := make([]int, model.Increments)
	for i := range on {
		on[i] = 1
	}
	res, err := s.Simulate(context.Background(), model.Schedule{"PU1": on, "PU2": make([]int, model.Increments)})
	require.NoError(t, err)
	require.Len(t, res.Pumps, 2)
	assert.Greater(t, res.Pumps[0].Energy[0], 0.0)
	assert.Equal(t, 0.0, res.Pumps[1].Energy[0])
	_, err = os.Stat(cfg.Export.ResultsPath)
	assert.NoError(t, err)
}

func TestSimulateRejectsIncompleteSchedule(t *testing.T) {
	s := newService(t, testConfig(t))

	_, err := s.Simulate(context.Background(), model.Schedule{"PU1": {1}})
	assert.ErrorIs(t, err, model.ErrIncompletePumpSet)
	_, err = s.Simulate(context.Background(), model.Schedule{"PU1": {1}, "X": {1}})
	assert.ErrorIs(t, err, model.ErrIncompletePumpSet)
}

func TestNewRejectsUnknownModules(t *testing.T) {
	cfg := testConfig(t)
	cfg.Visualize.Type = "hologram"
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Optimizer.Proposer.Type = "annealing"
	_, err = New(cfg)
	assert.Error(t, err)
}
