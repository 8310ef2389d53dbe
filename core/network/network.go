package network

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/logger"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	"github.com/MarceloManteigass/EpanetAPI/core/solver"
)

const secondsPerHour = 3600

// Run phases.
const (
	stateClosed int32 = iota
	stateOpen
	stateStepping
)

// Visualizer renders a result bundle. It reports its own failures.
type Visualizer interface {
	Render(res model.Results)
}

// Options tune how Run drives the solver.
type Options struct {
	// ReadBackStatus stores the status realized by the solver into the pump
	// series after pushing the scheduled value.
	ReadBackStatus bool
	InitMode       solver.InitMode
	// SnapshotPath receives the saved hydraulic session when not empty.
	SnapshotPath string
	Visualizer   Visualizer
	Logger       logger.Logger
}

// Network is the simulation controller of one topology. It is not safe for
// concurrent use; parallel trials need one Network each.
type Network struct {
	toolkit solver.Toolkit
	inpPath string
	rptPath string
	opts    Options
	log     logger.Logger

	pumpIDs []string
	tankIDs []string
	pumpSet map[string]struct{}

	pumps []model.ControlledLink
	tanks []*model.Tank

	state atomic.Int32
}

// Topology lists the pump and tank identifiers of a network.
type Topology struct {
	Pumps []string `json:"pumps"`
	Tanks []string `json:"tanks"`
}

// LoadTopology opens the topology once and collects its pumps and tanks.
func LoadTopology(tk solver.Toolkit, inpPath string) (Topology, error) {
	proj, err := tk.Open(inpPath, "")
	if err != nil {
		return Topology{}, solver.Wrap("open", err)
	}
	defer func() { _ = proj.Close() }()
	links, err := proj.Links()
	if err != nil {
		return Topology{}, solver.Wrap("links", err)
	}
	nodes, err := proj.Nodes()
	if err != nil {
		return Topology{}, solver.Wrap("nodes", err)
	}
	var topo Topology
	for _, l := range links {
		if l.Type == solver.LinkPump {
			topo.Pumps = append(topo.Pumps, l.ID)
		}
	}
	for _, n := range nodes {
		if n.Type == solver.NodeTank {
			topo.Tanks = append(topo.Tanks, n.ID)
		}
	}
	return topo, nil
}

// New loads the topology at inpPath and returns a reset Network. Reports of
// each run are written to rptPath when not empty.
func New(tk solver.Toolkit, inpPath, rptPath string, opts Options) (*Network, error) {
	inp, err := filepath.Abs(inpPath)
	if err != nil {
		return nil, fmt.Errorf("network file: %w", err)
	}
	rpt := rptPath
	if rpt != "" {
		if rpt, err = filepath.Abs(rptPath); err != nil {
			return nil, fmt.Errorf("report file: %w", err)
		}
	}
	topo, err := LoadTopology(tk, inp)
	if err != nil {
		return nil, err
	}
	n := &Network{
		toolkit: tk,
		inpPath: inp,
		rptPath: rpt,
		opts:    opts,
		log:     logger.OrNop(opts.Logger),
		pumpIDs: topo.Pumps,
		tankIDs: topo.Tanks,
		pumpSet: make(map[string]struct{}, len(topo.Pumps)),
	}
	for _, id := range topo.Pumps {
		n.pumpSet[id] = struct{}{}
	}
	n.Reset()
	return n, nil
}

// Topology returns the pump and tank identifiers.
func (n *Network) Topology() Topology {
	return Topology{
		Pumps: append([]string(nil), n.pumpIDs...),
		Tanks: append([]string(nil), n.tankIDs...),
	}
}

// Reset rebuilds every pump and tank with zeroed series. Entities handed
// out before the call are detached from the network.
func (n *Network) Reset() {
	n.pumps = make([]model.ControlledLink, len(n.pumpIDs))
	for i, id := range n.pumpIDs {
		n.pumps[i] = model.NewPump(id)
	}
	n.tanks = make([]*model.Tank, len(n.tankIDs))
	for i, id := range n.tankIDs {
		n.tanks[i] = model.NewTank(id)
	}
}

// Pumps returns the live pump collection. The slice is a copy but its
// elements are the network's own pumps.
func (n *Network) Pumps() []model.ControlledLink {
	return append([]model.ControlledLink(nil), n.pumps...)
}

// SetPumps replaces the pump collection. Elements that are not pumps of the
// topology fail with model.ErrTypeMismatch; a collection that misses or
// repeats a pump fails with model.ErrIncompletePumpSet.
func (n *Network) SetPumps(pumps []model.ControlledLink) error {
	seen := make(map[string]struct{}, len(pumps))
	for i, p := range pumps {
		if p == nil {
			return fmt.Errorf("pump %d is nil: %w", i, model.ErrTypeMismatch)
		}
		id := p.ID()
		if _, ok := n.pumpSet[id]; !ok {
			return fmt.Errorf("link %q is not a pump of the network: %w", id, model.ErrTypeMismatch)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("pump %q given twice: %w", id, model.ErrIncompletePumpSet)
		}
		if p.Inc() != model.Increments {
			return fmt.Errorf("pump %q has %d increments: %w", id, p.Inc(), model.ErrTypeMismatch)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != len(n.pumpSet) {
		return fmt.Errorf("got %d of %d pumps: %w", len(seen), len(n.pumpSet), model.ErrIncompletePumpSet)
	}
	n.pumps = append([]model.ControlledLink(nil), pumps...)
	return nil
}

// Tanks returns the live tank collection.
func (n *Network) Tanks() []*model.Tank {
	return append([]*model.Tank(nil), n.tanks...)
}

// Run simulates the network with the scheduled pump statuses. The solver
// session and project are closed on every return path. Calling Run while
// another Run of the same Network is in progress panics.
func (n *Network) Run(ctx context.Context) (err error) {
	if !n.state.CompareAndSwap(stateClosed, stateOpen) {
		panic("network: Run called while a simulation is in progress")
	}
	start := time.Now()
	defer func() {
		n.state.Store(stateClosed)
		runDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "failed"
		}
		hydraulicSessions.WithLabelValues(result).Inc()
	}()

	proj, err := n.toolkit.Open(n.inpPath, n.rptPath)
	if err != nil {
		return solver.Wrap("open", err)
	}
	defer func() {
		if cerr := proj.Close(); cerr != nil && err == nil {
			err = solver.Wrap("close", cerr)
		}
	}()

	if err := proj.OpenHydraulics(); err != nil {
		return solver.Wrap("openH", err)
	}
	hydOpen := true
	defer func() {
		if !hydOpen {
			return
		}
		if cerr := proj.CloseHydraulics(); cerr != nil && err == nil {
			err = solver.Wrap("closeH", cerr)
		}
	}()
	if err := proj.InitHydraulics(n.opts.InitMode); err != nil {
		return solver.Wrap("initH", err)
	}

	n.state.Store(stateStepping)
	samples, err := n.step(ctx, proj)
	if err != nil {
		return err
	}

	hydOpen = false
	if err := proj.CloseHydraulics(); err != nil {
		return solver.Wrap("closeH", err)
	}
	if n.opts.SnapshotPath != "" {
		if err := proj.SaveHydraulics(n.opts.SnapshotPath); err != nil {
			return solver.Wrap("saveH", err)
		}
	}
	n.log.Debugw("simulation finished", map[string]any{
		"samples":  samples,
		"duration": time.Since(start).String(),
	})
	return nil
}

// step advances the solver until it runs out of steps or every increment
// has been sampled. It returns the number of samples taken.
func (n *Network) step(ctx context.Context, proj solver.Project) (int, error) {
	inc := 0
	for inc < model.Increments {
		if err := ctx.Err(); err != nil {
			return inc, err
		}
		t, err := proj.RunHydraulics()
		if err != nil {
			return inc, solver.Wrap("runH", err)
		}
		hydraulicSteps.Inc()
		if t%secondsPerHour == 0 {
			if err := n.sample(proj, inc); err != nil {
				return inc, err
			}
			inc++
		}
		tstep, err := proj.NextHydraulics()
		if err != nil {
			return inc, solver.Wrap("nextH", err)
		}
		if tstep <= 0 {
			break
		}
	}
	return inc, nil
}

// sample pushes the control values for hour inc and harvests the readings.
func (n *Network) sample(proj solver.Project, inc int) error {
	for _, p := range n.pumps {
		status, err := p.Status(inc)
		if err != nil {
			return err
		}
		if err := proj.SetLinkValue(p.ID(), solver.LinkStatus, float64(status)); err != nil {
			return solver.Wrap("setLinkValue", err)
		}
		energy, err := proj.LinkValue(p.ID(), solver.LinkEnergy)
		if err != nil {
			return solver.Wrap("getLinkValue", err)
		}
		if err := p.SetEnergy(inc, energy); err != nil {
			return err
		}
		if !n.opts.ReadBackStatus {
			continue
		}
		realized, err := proj.LinkValue(p.ID(), solver.LinkStatus)
		if err != nil {
			return solver.Wrap("getLinkValue", err)
		}
		if err := p.SetStatus(inc, int(math.Round(realized))); err != nil {
			return solver.Wrap("getLinkValue", err)
		}
	}
	for _, t := range n.tanks {
		level, err := proj.NodeValue(t.ID(), solver.NodePressure)
		if err != nil {
			return solver.Wrap("getNodeValue", err)
		}
		if err := t.SetLevel(inc, level); err != nil {
			return err
		}
	}
	return nil
}

// Results returns the snapshot of every pump and tank. When visualize is
// set the bundle is also handed to the configured Visualizer.
func (n *Network) Results(visualize bool) model.Results {
	res := model.Results{
		Pumps: make([]model.PumpResult, len(n.pumps)),
		Tanks: make([]model.TankResult, len(n.tanks)),
	}
	for i, p := range n.pumps {
		res.Pumps[i] = p.Results()
	}
	for i, t := range n.tanks {
		res.Tanks[i] = t.Results()
	}
	if visualize {
		if n.opts.Visualizer != nil {
			n.opts.Visualizer.Render(res)
		} else {
			n.log.Warnf("visualization requested but no visualizer configured")
		}
	}
	return res
}
