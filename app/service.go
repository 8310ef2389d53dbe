package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/config"
	"github.com/MarceloManteigass/EpanetAPI/core/events"
	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	coremon "github.com/MarceloManteigass/EpanetAPI/core/monitoring"
	coremqtt "github.com/MarceloManteigass/EpanetAPI/core/mqtt"
	"github.com/MarceloManteigass/EpanetAPI/core/network"
	"github.com/MarceloManteigass/EpanetAPI/core/optimizer"
	"github.com/MarceloManteigass/EpanetAPI/core/solver"
	"github.com/MarceloManteigass/EpanetAPI/core/trials"
	"github.com/MarceloManteigass/EpanetAPI/infra/hydraulics"
	"github.com/MarceloManteigass/EpanetAPI/infra/logger"
	"github.com/MarceloManteigass/EpanetAPI/infra/metrics"
	"github.com/MarceloManteigass/EpanetAPI/infra/mqtt"
	"github.com/MarceloManteigass/EpanetAPI/internal/eventbus"
	"github.com/MarceloManteigass/EpanetAPI/pkg/export"
)

// Service wires the network, the optimizer and their collaborators.
type Service struct {
	cfg       *config.Config
	toolkit   solver.Toolkit
	net       *network.Network
	opt       *optimizer.Optimizer
	bus       *eventbus.Bus[events.Event]
	sink      coremetrics.MetricsSink
	store     trials.Store
	publisher coremqtt.Client
	log       logger.Logger

	startOnce sync.Once
	collector <-chan struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithToolkit replaces the built-in hydraulic engine.
func WithToolkit(tk solver.Toolkit) Option { return func(s *Service) { s.toolkit = tk } }

// WithPublisher replaces the MQTT client built from the configuration.
func WithPublisher(c coremqtt.Client) Option { return func(s *Service) { s.publisher = c } }

// Report is the outcome of an optimization.
type Report struct {
	Summary    optimizer.Summary
	Best       optimizer.Best
	Schedule   model.Schedule
	Results    model.Results
	Deliveries []coremqtt.Delivery
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	s := &Service{cfg: cfg, log: logger.New("service")}
	for _, opt := range opts {
		opt(s)
	}
	if s.toolkit == nil {
		s.toolkit = hydraulics.NewToolkit(logger.New("hydraulics"))
	}

	netOpts, err := cfg.Network.Options()
	if err != nil {
		return nil, fmt.Errorf("network options: %w", err)
	}
	netOpts.Logger = logger.New("network")
	workerOpts := netOpts
	if netOpts.Visualizer, err = metrics.NewVisualizer(cfg.Visualize); err != nil {
		return nil, fmt.Errorf("visualizer: %w", err)
	}
	s.net, err = network.New(s.toolkit, cfg.Network.InpFile, cfg.Network.RptFile, netOpts)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	if s.store, err = trials.NewStore(cfg.Trials); err != nil {
		return nil, fmt.Errorf("trial store: %w", err)
	}
	proposer, err := optimizer.NewProposer(cfg.Optimizer)
	if err != nil {
		_ = s.store.Close()
		return nil, fmt.Errorf("proposer: %w", err)
	}

	// Extra workers share the toolkit but never write reports or snapshots.
	workerOpts.SnapshotPath = ""
	newWorker := func() (optimizer.Controller, error) {
		return network.New(s.toolkit, cfg.Network.InpFile, "", workerOpts)
	}
	s.bus = eventbus.New[events.Event](0)
	s.opt = optimizer.New(s.net,
		optimizer.WithProposer(proposer),
		optimizer.WithWorkers(cfg.Optimizer.Workers, newWorker),
		optimizer.WithLogger(logger.New("optimizer")),
		optimizer.WithLogEvery(cfg.Optimizer.LogEvery),
		optimizer.WithEventBus(s.bus),
		optimizer.WithTrialStore(s.store),
		optimizer.WithMetricsSink(s.sink),
	)

	if s.publisher == nil && cfg.MQTT.Enabled {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = s.store.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		s.publisher = client
	}
	return s, nil
}

// Start launches the event collector and the metrics endpoint. They stop
// when ctx is canceled or the service is closed.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.collector = metrics.StartEventCollector(ctx, s.bus, s.sink)
		if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
			go func() {
				if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
					s.log.Errorf("prom server: %v", err)
				}
			}()
		}
	})
}

// Topology returns the pumps and tanks of the configured network.
func (s *Service) Topology() network.Topology { return s.net.Topology() }

// Optimize trains the optimizer, replays the best schedule, exports the
// results and publishes the schedule to the pump controllers.
func (s *Service) Optimize(ctx context.Context) (*Report, error) {
	sum, err := s.opt.Train(ctx, s.cfg.Optimizer.Iterations)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	s.log.Infow("training finished", map[string]any{
		"run_id":         sum.RunID,
		"best_iteration": sum.BestIteration,
		"best_objective": sum.BestObjective,
		"failed":         sum.Failed,
		"duration":       sum.Duration.String(),
	})
	best, err := s.opt.Best()
	if err != nil {
		return nil, err
	}
	pumps, err := s.opt.Control()
	if err != nil {
		return nil, err
	}

	rep := &Report{Summary: sum, Best: best, Schedule: model.ScheduleOf(pumps)}
	if rep.Results, err = s.evaluate(ctx, sum.RunID, pumps); err != nil {
		s.report("final_evaluation", err)
		return rep, fmt.Errorf("final evaluation: %w", err)
	}
	if p := s.cfg.Export.SchedulePath; p != "" {
		if err := export.WriteScheduleFile(p, rep.Schedule); err != nil {
			s.report("export", err)
			return rep, fmt.Errorf("export schedule: %w", err)
		}
	}
	if s.publisher != nil {
		rep.Deliveries, err = coremqtt.PublishSchedule(s.publisher, rep.Schedule, s.cfg.MQTT.AckTimeout())
		if err != nil {
			s.report("publish", err)
			return rep, fmt.Errorf("publish schedule: %w", err)
		}
		s.log.Infof("schedule published to %d pumps", len(rep.Deliveries))
	}
	return rep, nil
}

// Simulate runs the network once with the given schedule. Every pump of the
// network must be scheduled.
func (s *Service) Simulate(ctx context.Context, sched model.Schedule) (model.Results, error) {
	topo := s.net.Topology()
	if len(sched) != len(topo.Pumps) {
		return model.Results{}, fmt.Errorf("schedule covers %d pumps, network has %d: %w",
			len(sched), len(topo.Pumps), model.ErrIncompletePumpSet)
	}
	for _, id := range topo.Pumps {
		if _, ok := sched[id]; !ok {
			return model.Results{}, fmt.Errorf("pump %s not scheduled: %w", id, model.ErrIncompletePumpSet)
		}
	}
	s.net.Reset()
	pumps := s.net.Pumps()
	if err := sched.Apply(pumps); err != nil {
		return model.Results{}, err
	}
	res, err := s.evaluate(ctx, "", pumps)
	if err != nil {
		s.report("simulation", err)
		return res, err
	}
	return res, nil
}

func (s *Service) evaluate(ctx context.Context, runID string, pumps []model.ControlledLink) (model.Results, error) {
	s.net.Reset()
	if err := s.net.SetPumps(pumps); err != nil {
		return model.Results{}, err
	}
	if err := s.net.Run(ctx); err != nil {
		return model.Results{}, err
	}
	res := s.net.Results(s.cfg.Visualize.Type != "")
	s.bus.Publish(events.SimulationEvent{RunID: runID, Results: res, Time: time.Now()})
	if p := s.cfg.Export.ResultsPath; p != "" {
		if err := export.WriteFile(p, res); err != nil {
			return res, fmt.Errorf("export results: %w", err)
		}
	}
	return res, nil
}

// Trials queries the trial store.
func (s *Service) Trials(ctx context.Context, q trials.Query) ([]trials.Record, error) {
	return s.store.Query(ctx, q)
}

func (s *Service) report(stage string, err error) {
	s.log.Errorf("%s: %v", stage, err)
	coremon.CaptureException(err, map[string]string{"module": "service", "stage": stage})
}

// Close stops the collector and releases the store, sinks and MQTT client.
func (s *Service) Close() error {
	s.bus.Close()
	if s.collector != nil {
		<-s.collector
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if d, ok := s.publisher.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	return s.store.Close()
}
