package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/MarceloManteigass/EpanetAPI/core/events"
	"github.com/MarceloManteigass/EpanetAPI/core/logger"
	"github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	"github.com/MarceloManteigass/EpanetAPI/core/solver"
	"github.com/MarceloManteigass/EpanetAPI/core/trials"
	"github.com/MarceloManteigass/EpanetAPI/internal/eventbus"
)

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithProposer replaces the default fair coin proposer.
func WithProposer(p Proposer) Option { return func(o *Optimizer) { o.proposer = p } }

// WithObjective replaces EnergyPerStoredWater.
func WithObjective(f ObjectiveFunc) Option { return func(o *Optimizer) { o.objective = f } }

// WithWorkers runs n trials in parallel. newCtrl creates the controllers of
// the extra workers; the optimizer's own controller serves the first one.
func WithWorkers(n int, newCtrl ControllerFactory) Option {
	return func(o *Optimizer) {
		o.workers = n
		o.newCtrl = newCtrl
	}
}

// WithLogger sets the training logger.
func WithLogger(l logger.Logger) Option { return func(o *Optimizer) { o.log = logger.OrNop(l) } }

// WithLogEvery logs training progress every n completed trials. Zero
// disables progress logs.
func WithLogEvery(n int) Option { return func(o *Optimizer) { o.logEvery = n } }

// WithEventBus publishes trial and best events on bus.
func WithEventBus(bus eventbus.EventBus[events.Event]) Option {
	return func(o *Optimizer) { o.bus = bus }
}

// WithTrialStore appends every trial to s.
func WithTrialStore(s trials.Store) Option { return func(o *Optimizer) { o.store = s } }

// WithMetricsSink records trial and best metrics to s.
func WithMetricsSink(s metrics.MetricsSink) Option { return func(o *Optimizer) { o.sink = s } }

// Best is the best trial of the last training run.
type Best struct {
	RunID     string
	Iteration int
	Objective float64
	Schedule  model.Schedule
	Results   model.Results
	pumps     []model.ControlledLink
}

// Summary describes a finished training run.
type Summary struct {
	RunID         string
	Iterations    int
	Completed     int
	Failed        int
	Improvements  int
	BestIteration int
	BestObjective float64
	MeanObjective float64
	StdDev        float64
	Duration      time.Duration
}

// Optimizer searches the schedule minimizing the objective of a controller.
type Optimizer struct {
	ctrl      Controller
	newCtrl   ControllerFactory
	extra     []Controller
	proposer  Proposer
	objective ObjectiveFunc
	workers   int
	logEvery  int
	log       logger.Logger
	bus       eventbus.EventBus[events.Event]
	store     trials.Store
	sink      metrics.MetricsSink

	trainMu sync.Mutex
	mu      sync.RWMutex
	best    *Best
}

// New returns an untrained optimizer over ctrl.
func New(ctrl Controller, opts ...Option) *Optimizer {
	o := &Optimizer{
		ctrl:      ctrl,
		objective: EnergyPerStoredWater,
		workers:   1,
		log:       logger.NopLogger{},
		store:     trials.NopStore{},
		sink:      metrics.NopSink{},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.proposer == nil {
		o.proposer = NewRandomProposer(0)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return o
}

type trialJob struct {
	iter     int
	schedule model.Schedule
}

type trialOutcome struct {
	iter      int
	schedule  model.Schedule
	pumps     []model.ControlledLink
	results   model.Results
	objective float64
	duration  time.Duration
	// err aborted the trial; fatal aborts the training run.
	err   error
	fatal error
}

// runState accumulates the outcomes of one Train call. It is only touched
// by the goroutine merging outcomes.
type runState struct {
	id         string
	iterations int
	start      time.Time
	best       *Best
	objectives []float64
	completed  int
	failed     int
	improved   int
}

// Train runs iterations trials and keeps the best scoring schedule. The best
// schedule of a previous Train call is discarded. A trial aborted by a
// solver failure is recorded and skipped; context cancellation and
// programmer errors stop the run.
func (o *Optimizer) Train(ctx context.Context, iterations int) (Summary, error) {
	o.trainMu.Lock()
	defer o.trainMu.Unlock()

	st := &runState{id: uuid.NewString(), iterations: iterations, start: time.Now()}
	o.mu.Lock()
	o.best = nil
	o.mu.Unlock()
	o.log.Infow("training started", map[string]any{
		"run_id":     st.id,
		"iterations": iterations,
		"workers":    o.workers,
	})

	var err error
	if o.workers > 1 {
		err = o.trainParallel(ctx, st)
	} else {
		err = o.trainSequential(ctx, st)
	}
	sum := st.summary()
	o.log.Infow("training finished", map[string]any{
		"run_id":         sum.RunID,
		"completed":      sum.Completed,
		"failed":         sum.Failed,
		"improvements":   sum.Improvements,
		"best_objective": sum.BestObjective,
		"best_iteration": sum.BestIteration,
		"duration":       sum.Duration.String(),
	})
	return sum, err
}

func (o *Optimizer) trainSequential(ctx context.Context, st *runState) error {
	template := o.template()
	for i := 0; i < st.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		sched, err := o.propose(template)
		if err != nil {
			return err
		}
		out := o.trial(ctx, o.ctrl, trialJob{iter: i, schedule: sched})
		if out.fatal != nil {
			return out.fatal
		}
		o.merge(ctx, st, out)
	}
	return nil
}

// trainParallel proposes schedules in iteration order and fans them out to
// one goroutine per controller. Outcomes are merged by the calling
// goroutine only.
func (o *Optimizer) trainParallel(ctx context.Context, st *runState) error {
	template := o.template()
	ctrls, err := o.controllers()
	if err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan trialJob)
	outs := make(chan trialOutcome, len(ctrls))
	for _, c := range ctrls {
		g.Go(func() error {
			for job := range jobs {
				out := o.trial(gctx, c, job)
				if out.fatal != nil {
					return out.fatal
				}
				outs <- out
			}
			return nil
		})
	}

	var proposeErr error
	next, inflight := 0, 0
	var pending *trialJob
loop:
	for next < st.iterations || inflight > 0 {
		var send chan trialJob
		if next < st.iterations {
			if pending == nil {
				sched, err := o.propose(template)
				if err != nil {
					proposeErr = err
					break loop
				}
				pending = &trialJob{iter: next, schedule: sched}
			}
			send = jobs
		}
		var job trialJob
		if pending != nil {
			job = *pending
		}
		select {
		case send <- job:
			next++
			inflight++
			pending = nil
		case out := <-outs:
			inflight--
			o.merge(ctx, st, out)
		case <-gctx.Done():
			break loop
		}
	}
	close(jobs)
	// drain until every worker has returned
	werrc := make(chan error, 1)
	go func() {
		werrc <- g.Wait()
		close(outs)
	}()
	for out := range outs {
		o.merge(ctx, st, out)
	}
	werr := <-werrc
	if proposeErr != nil {
		return proposeErr
	}
	if werr != nil {
		return werr
	}
	return ctx.Err()
}

func (o *Optimizer) controllers() ([]Controller, error) {
	need := o.workers - 1
	if need > 0 && o.newCtrl == nil {
		return nil, fmt.Errorf("optimizer: %d workers need a controller factory", o.workers)
	}
	for len(o.extra) < need {
		c, err := o.newCtrl()
		if err != nil {
			return nil, fmt.Errorf("optimizer: create worker controller: %w", err)
		}
		o.extra = append(o.extra, c)
	}
	return append([]Controller{o.ctrl}, o.extra[:need]...), nil
}

// template returns detached copies of the freshly reset pumps. Proposals
// are drawn over them so that no worker controller is read concurrently.
func (o *Optimizer) template() []model.ControlledLink {
	o.ctrl.Reset()
	pumps := o.ctrl.Pumps()
	out := make([]model.ControlledLink, len(pumps))
	for i, p := range pumps {
		out[i] = p.Clone()
	}
	return out
}

func (o *Optimizer) propose(template []model.ControlledLink) (model.Schedule, error) {
	sched, err := o.proposer.Propose(template)
	if err != nil {
		return nil, fmt.Errorf("optimizer: propose: %w", err)
	}
	return sched, nil
}

// trial evaluates one schedule on ctrl.
func (o *Optimizer) trial(ctx context.Context, ctrl Controller, job trialJob) trialOutcome {
	out := trialOutcome{iter: job.iter, schedule: job.schedule}
	start := time.Now()
	ctrl.Reset()
	pumps := ctrl.Pumps()
	if err := job.schedule.Apply(pumps); err != nil {
		out.fatal = fmt.Errorf("optimizer: apply schedule: %w", err)
		return out
	}
	if err := ctrl.SetPumps(pumps); err != nil {
		out.fatal = fmt.Errorf("optimizer: set pumps: %w", err)
		return out
	}
	if err := ctrl.Run(ctx); err != nil {
		switch {
		case ctx.Err() != nil:
			out.fatal = ctx.Err()
		case errors.Is(err, solver.ErrSolverFailure):
			out.err = err
		default:
			out.fatal = err
		}
		out.duration = time.Since(start)
		return out
	}
	out.results = ctrl.Results(false)
	out.objective = o.objective(out.results)
	out.pumps = make([]model.ControlledLink, 0, len(pumps))
	for _, p := range ctrl.Pumps() {
		out.pumps = append(out.pumps, p.Clone())
	}
	out.duration = time.Since(start)
	return out
}

// better reports whether out beats the current best. Ties go to the
// earlier iteration so parallel runs pick what a sequential run would.
func better(out trialOutcome, best *Best) bool {
	if out.err != nil || math.IsNaN(out.objective) {
		return false
	}
	if best == nil {
		return out.objective < math.Inf(1)
	}
	if out.objective < best.Objective {
		return true
	}
	return out.objective == best.Objective && out.iter < best.Iteration
}

func (o *Optimizer) merge(ctx context.Context, st *runState, out trialOutcome) {
	now := time.Now()
	improved := better(out, st.best)
	if out.err != nil {
		st.failed++
		o.log.Warnf("trial %d aborted: %v", out.iter, out.err)
	} else {
		st.completed++
		st.objectives = append(st.objectives, out.objective)
		if obs, ok := o.proposer.(Observer); ok {
			obs.Observe(out.schedule, out.objective)
		}
	}
	if improved {
		st.improved++
		st.best = &Best{
			RunID:     st.id,
			Iteration: out.iter,
			Objective: out.objective,
			Schedule:  out.schedule.Clone(),
			Results:   out.results,
			pumps:     out.pumps,
		}
		o.mu.Lock()
		o.best = st.best
		o.mu.Unlock()
		o.log.Debugw("new best schedule", map[string]any{
			"run_id":    st.id,
			"iteration": out.iter,
			"objective": out.objective,
		})
	}
	o.record(ctx, st, out, improved, now)

	done := st.completed + st.failed
	if o.logEvery > 0 && done%o.logEvery == 0 {
		fields := map[string]any{
			"run_id": st.id,
			"trials": done,
			"total":  st.iterations,
			"failed": st.failed,
		}
		if st.best != nil {
			fields["best_objective"] = st.best.Objective
		}
		o.log.Infow("training progress", fields)
	}
}

func (o *Optimizer) record(ctx context.Context, st *runState, out trialOutcome, improved bool, now time.Time) {
	energy := out.results.TotalEnergy()
	level := out.results.FinalLevel()
	if o.bus != nil {
		o.bus.Publish(events.TrialEvent{
			RunID:       st.id,
			Iteration:   out.iter,
			Objective:   out.objective,
			TotalEnergy: energy,
			FinalLevel:  level,
			Improved:    improved,
			Duration:    out.duration,
			Err:         out.err,
			Time:        now,
		})
		if improved {
			o.bus.Publish(events.BestEvent{
				RunID:     st.id,
				Iteration: out.iter,
				Objective: out.objective,
				Schedule:  out.schedule.Clone(),
				Time:      now,
			})
		}
	}
	if err := o.sink.RecordTrial(metrics.TrialResult{
		RunID:       st.id,
		Iteration:   out.iter,
		Objective:   out.objective,
		TotalEnergy: energy,
		FinalLevel:  level,
		Improved:    improved,
		Failed:      out.err != nil,
		Duration:    out.duration,
		Time:        now,
	}); err != nil {
		o.log.Warnf("record trial metrics: %v", err)
	}
	if br, ok := o.sink.(metrics.BestRecorder); ok && improved {
		if err := br.RecordBest(metrics.BestObjective{
			RunID:     st.id,
			Iteration: out.iter,
			Objective: out.objective,
			Time:      now,
		}); err != nil {
			o.log.Warnf("record best objective: %v", err)
		}
	}
	rec := trials.Record{
		Timestamp:   now,
		RunID:       st.id,
		Iteration:   out.iter,
		Objective:   out.objective,
		TotalEnergy: energy,
		FinalLevel:  level,
		Improved:    improved,
		Schedule:    out.schedule,
	}
	if out.err != nil {
		rec.Error = out.err.Error()
	}
	// the store must outlive a cancelled run
	if err := o.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		o.log.Warnf("append trial record: %v", err)
	}
}

func (st *runState) summary() Summary {
	sum := Summary{
		RunID:         st.id,
		Iterations:    st.iterations,
		Completed:     st.completed,
		Failed:        st.failed,
		Improvements:  st.improved,
		BestIteration: -1,
		BestObjective: math.Inf(1),
		Duration:      time.Since(st.start),
	}
	if st.best != nil {
		sum.BestIteration = st.best.Iteration
		sum.BestObjective = st.best.Objective
	}
	finite := make([]float64, 0, len(st.objectives))
	for _, v := range st.objectives {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) > 0 {
		sum.MeanObjective = stat.Mean(finite, nil)
	}
	if len(finite) > 1 {
		sum.StdDev = stat.StdDev(finite, nil)
	}
	return sum
}

// Control returns independent copies of the pumps of the best trial.
func (o *Optimizer) Control() ([]model.ControlledLink, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.best == nil {
		return nil, ErrNotTrained
	}
	pumps := make([]model.ControlledLink, len(o.best.pumps))
	for i, p := range o.best.pumps {
		pumps[i] = p.Clone()
	}
	return pumps, nil
}

// Best returns the best trial of the last training run.
func (o *Optimizer) Best() (Best, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.best == nil {
		return Best{}, ErrNotTrained
	}
	b := *o.best
	b.Schedule = b.Schedule.Clone()
	return b, nil
}
