package hydraulics

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/MarceloManteigass/EpanetAPI/core/logger"
	"github.com/MarceloManteigass/EpanetAPI/core/solver"
)

const (
	rho = 1000.0
	g   = 9.81
	// Wire-to-water efficiency used for energy and for POWER pumps.
	pumpEfficiency = 0.75
	// Head assumed for POWER pumps whose lift cannot be derived.
	minLift = 10.0
)

var (
	ErrNotOpen      = errors.New("hydraulics: session not open")
	ErrNotInit      = errors.New("hydraulics: session not initialized")
	ErrUnknownLink  = errors.New("hydraulics: unknown link")
	ErrUnknownNode  = errors.New("hydraulics: unknown node")
	ErrNothingSaved = errors.New("hydraulics: session was not initialized with a saving mode")
	ErrClosed       = errors.New("hydraulics: project closed")
)

// Toolkit opens network files with the built-in engine.
type Toolkit struct {
	Log logger.Logger
}

// NewToolkit returns a Toolkit logging to log (nil discards).
func NewToolkit(log logger.Logger) *Toolkit {
	return &Toolkit{Log: logger.OrNop(log)}
}

// Open parses inpPath. When rptPath is set an hourly report is written to
// it while hydraulic sessions run.
func (tk *Toolkit) Open(inpPath, rptPath string) (solver.Project, error) {
	log := logger.OrNop(tk.Log)
	m, err := ParseFile(inpPath)
	if err != nil {
		return nil, err
	}
	p := newProject(m, log)
	if rptPath != "" {
		if dir := filepath.Dir(rptPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		f, err := os.Create(rptPath)
		if err != nil {
			return nil, err
		}
		p.rptFile = f
		p.rpt = bufio.NewWriter(f)
		fmt.Fprintf(p.rpt, "Network %s: %d pumps, %d tanks, %d junctions\n",
			filepath.Base(inpPath), len(m.Pumps), len(m.Tanks), len(m.Junctions))
	}
	log.Debugw("network opened", map[string]any{
		"inp": inpPath, "pumps": len(m.Pumps), "tanks": len(m.Tanks),
	})
	return p, nil
}

type pumpState struct {
	def       Pump
	flow      float64 // design flow, m3/s
	power     float64 // kW while running
	suction   int     // tank index or -1
	delivery  int     // tank index or -1
	requested float64
	status    float64
}

type junctionState struct {
	def    Junction
	supply int // tank index or -1
}

type project struct {
	model *Model
	log   logger.Logger

	pumps     []*pumpState
	pumpIdx   map[string]int
	tanks     []Tank
	tankIdx   map[string]int
	junctions []junctionState
	nodeIdx   map[string]solver.NodeInfo
	linkIdx   map[string]solver.LinkInfo
	resHead   map[string]float64
	pipeIDs   map[string]bool

	levels []float64
	t      int64

	open   bool
	inited bool
	closed bool
	mode   solver.InitMode
	steps  []StepRecord

	rpt     *bufio.Writer
	rptFile *os.File
}

func newProject(m *Model, log logger.Logger) *project {
	p := &project{
		model:   m,
		log:     log,
		pumpIdx: make(map[string]int),
		tankIdx: make(map[string]int),
		nodeIdx: make(map[string]solver.NodeInfo),
		linkIdx: make(map[string]solver.LinkInfo),
		resHead: make(map[string]float64),
		pipeIDs: make(map[string]bool),
		tanks:   m.Tanks,
	}
	for _, j := range m.Junctions {
		p.nodeIdx[j.ID] = solver.NodeInfo{ID: j.ID, Type: solver.NodeJunction}
	}
	for _, r := range m.Reservoirs {
		p.nodeIdx[r.ID] = solver.NodeInfo{ID: r.ID, Type: solver.NodeReservoir}
		p.resHead[r.ID] = r.Head
	}
	for i, t := range m.Tanks {
		p.nodeIdx[t.ID] = solver.NodeInfo{ID: t.ID, Type: solver.NodeTank}
		p.tankIdx[t.ID] = i
	}
	for _, pp := range m.Pipes {
		p.linkIdx[pp.ID] = solver.LinkInfo{ID: pp.ID, Type: solver.LinkPipe}
		p.pipeIDs[pp.ID] = true
	}

	adj := p.adjacency()
	for i, def := range m.Pumps {
		p.linkIdx[def.ID] = solver.LinkInfo{ID: def.ID, Type: solver.LinkPump}
		p.pumpIdx[def.ID] = i
		ps := &pumpState{
			def:      def,
			suction:  p.nearestTank(adj, def.From),
			delivery: p.nearestTank(adj, def.To),
		}
		ps.flow, ps.power = p.rating(def)
		p.pumps = append(p.pumps, ps)
	}
	for _, j := range m.Junctions {
		p.junctions = append(p.junctions, junctionState{def: j, supply: p.nearestTank(adj, j.ID)})
	}
	return p
}

// adjacency links nodes through pipes only. Pumps separate pressure zones.
func (p *project) adjacency() map[string][]string {
	adj := make(map[string][]string)
	for _, pp := range p.model.Pipes {
		adj[pp.From] = append(adj[pp.From], pp.To)
		adj[pp.To] = append(adj[pp.To], pp.From)
	}
	return adj
}

// nearestTank walks pipes breadth first from node and returns the index of
// the first tank found, or -1 when a reservoir is reached first or the zone
// has no storage.
func (p *project) nearestTank(adj map[string][]string, node string) int {
	seen := map[string]bool{node: true}
	queue := []string{node}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if i, ok := p.tankIdx[n]; ok {
			return i
		}
		if _, ok := p.resHead[n]; ok {
			return -1
		}
		for _, next := range adj[n] {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return -1
}

func (p *project) nodeHead(id string) float64 {
	if h, ok := p.resHead[id]; ok {
		return h
	}
	if i, ok := p.tankIdx[id]; ok {
		t := p.tanks[i]
		return t.Elevation + t.InitLevel
	}
	for _, j := range p.model.Junctions {
		if j.ID == id {
			return j.Elevation
		}
	}
	return 0
}

// rating returns the design flow (m3/s) and running power (kW) of a pump.
// Curve pumps run at their first curve point. POWER pumps deliver the flow
// their power allows against the static lift between their end nodes.
func (p *project) rating(def Pump) (float64, float64) {
	if def.Curve != "" {
		pt := p.model.Curves[def.Curve][0]
		q := pt.X / 1000
		return q, rho * g * q * pt.Y / pumpEfficiency / 1000
	}
	lift := p.nodeHead(def.To) - p.nodeHead(def.From)
	if lift < minLift {
		lift = minLift
	}
	q := def.Power * 1000 * pumpEfficiency / (rho * g * lift)
	return q, def.Power
}

func (p *project) Links() ([]solver.LinkInfo, error) {
	if p.closed {
		return nil, ErrClosed
	}
	out := make([]solver.LinkInfo, 0, len(p.model.Pipes)+len(p.model.Pumps))
	for _, pp := range p.model.Pipes {
		out = append(out, p.linkIdx[pp.ID])
	}
	for _, pu := range p.model.Pumps {
		out = append(out, p.linkIdx[pu.ID])
	}
	return out, nil
}

func (p *project) Nodes() ([]solver.NodeInfo, error) {
	if p.closed {
		return nil, ErrClosed
	}
	out := make([]solver.NodeInfo, 0, len(p.nodeIdx))
	for _, j := range p.model.Junctions {
		out = append(out, p.nodeIdx[j.ID])
	}
	for _, r := range p.model.Reservoirs {
		out = append(out, p.nodeIdx[r.ID])
	}
	for _, t := range p.model.Tanks {
		out = append(out, p.nodeIdx[t.ID])
	}
	return out, nil
}

func (p *project) OpenHydraulics() error {
	if p.closed {
		return ErrClosed
	}
	p.open = true
	p.inited = false
	return nil
}

func (p *project) InitHydraulics(mode solver.InitMode) error {
	if !p.open {
		return ErrNotOpen
	}
	if !mode.Valid() {
		return fmt.Errorf("hydraulics: invalid init mode %d", mode)
	}
	p.mode = mode
	p.inited = true
	p.t = 0
	p.steps = nil
	p.levels = make([]float64, len(p.tanks))
	for i, t := range p.tanks {
		p.levels[i] = t.InitLevel
	}
	for _, ps := range p.pumps {
		ps.requested, ps.status = 1, 1
	}
	return nil
}

func (p *project) ready() error {
	if !p.open {
		return ErrNotOpen
	}
	if !p.inited {
		return ErrNotInit
	}
	return nil
}

// RunHydraulics settles pump statuses against the current tank levels.
func (p *project) RunHydraulics() (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	for _, ps := range p.pumps {
		ps.status = p.realize(ps)
	}
	if p.mode.Saves() {
		p.steps = append(p.steps, p.record())
	}
	if p.t%3600 == 0 {
		p.report()
	}
	return p.t, nil
}

func (p *project) realize(ps *pumpState) float64 {
	if ps.requested == 0 {
		return 0
	}
	if ps.def.Pattern != "" && p.multiplier(ps.def.Pattern) == 0 {
		return 0
	}
	if i := ps.suction; i >= 0 && p.levels[i] <= p.tanks[i].MinLevel {
		return 0
	}
	if i := ps.delivery; i >= 0 && p.levels[i] >= p.tanks[i].MaxLevel {
		return 0
	}
	return 1
}

func (p *project) multiplier(pattern string) float64 {
	if pattern == "" {
		return 1
	}
	mults := p.model.Patterns[pattern]
	if len(mults) == 0 {
		return 1
	}
	step := p.model.Times.PatternStep
	if step <= 0 {
		step = 3600
	}
	return mults[int(p.t/step)%len(mults)]
}

func (p *project) demand(j Junction) float64 {
	return j.Demand * p.multiplier(j.Pattern) / 1000
}

// NextHydraulics integrates tank levels over the next step. Steps are cut at
// whole hours so every hour boundary is solved.
func (p *project) NextHydraulics() (int64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	dur := p.model.Times.Duration
	if p.t >= dur {
		return 0, nil
	}
	step := p.model.Times.HydStep
	if toHour := 3600 - p.t%3600; toHour < step {
		step = toHour
	}
	if rest := dur - p.t; rest < step {
		step = rest
	}

	net := make([]float64, len(p.tanks))
	for _, ps := range p.pumps {
		if ps.status == 0 {
			continue
		}
		if ps.suction >= 0 {
			net[ps.suction] -= ps.flow
		}
		if ps.delivery >= 0 {
			net[ps.delivery] += ps.flow
		}
	}
	for _, j := range p.junctions {
		if j.supply >= 0 {
			net[j.supply] -= p.demand(j.def)
		}
	}
	for i, t := range p.tanks {
		area := math.Pi * t.Diameter * t.Diameter / 4
		lvl := p.levels[i] + net[i]*float64(step)/area
		p.levels[i] = math.Min(t.MaxLevel, math.Max(t.MinLevel, lvl))
	}
	p.t += step
	return step, nil
}

func (p *project) SetLinkValue(id string, prop solver.LinkProperty, value float64) error {
	if err := p.ready(); err != nil {
		return err
	}
	i, ok := p.pumpIdx[id]
	if !ok {
		if p.pipeIDs[id] && prop == solver.LinkStatus {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrUnknownLink, id)
	}
	if prop != solver.LinkStatus {
		return fmt.Errorf("hydraulics: link property %d is read only", prop)
	}
	if value != 0 && value != 1 {
		return fmt.Errorf("hydraulics: invalid status %v for %s", value, id)
	}
	ps := p.pumps[i]
	ps.requested = value
	ps.status = p.realize(ps)
	return nil
}

func (p *project) LinkValue(id string, prop solver.LinkProperty) (float64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	i, ok := p.pumpIdx[id]
	if !ok {
		if p.pipeIDs[id] {
			if prop == solver.LinkStatus {
				return 1, nil
			}
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrUnknownLink, id)
	}
	ps := p.pumps[i]
	switch prop {
	case solver.LinkStatus:
		return ps.status, nil
	case solver.LinkEnergy:
		return ps.status * ps.power, nil
	case solver.LinkFlow:
		return ps.status * ps.flow * 1000, nil
	}
	return 0, fmt.Errorf("hydraulics: unknown link property %d", prop)
}

func (p *project) NodeValue(id string, prop solver.NodeProperty) (float64, error) {
	if err := p.ready(); err != nil {
		return 0, err
	}
	info, ok := p.nodeIdx[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	switch info.Type {
	case solver.NodeTank:
		i := p.tankIdx[id]
		switch prop {
		case solver.NodePressure:
			return p.levels[i], nil
		case solver.NodeHead:
			return p.tanks[i].Elevation + p.levels[i], nil
		}
		return 0, nil
	case solver.NodeReservoir:
		if prop == solver.NodeHead {
			return p.resHead[id], nil
		}
		return 0, nil
	}
	for _, j := range p.junctions {
		if j.def.ID != id {
			continue
		}
		switch prop {
		case solver.NodeDemand:
			return p.demand(j.def) * 1000, nil
		case solver.NodeHead, solver.NodePressure:
			// Junctions take the head of their supplying tank.
			if j.supply < 0 {
				return 0, nil
			}
			t := p.tanks[j.supply]
			head := t.Elevation + p.levels[j.supply]
			if prop == solver.NodeHead {
				return head, nil
			}
			return math.Max(0, head-j.def.Elevation), nil
		}
	}
	return 0, nil
}

func (p *project) CloseHydraulics() error {
	if !p.open {
		return ErrNotOpen
	}
	p.open = false
	p.inited = false
	if p.rpt != nil {
		return p.rpt.Flush()
	}
	return nil
}

func (p *project) SaveHydraulics(path string) error {
	if p.closed {
		return ErrClosed
	}
	if !p.mode.Saves() || len(p.steps) == 0 {
		return ErrNothingSaved
	}
	return WriteSnapshot(path, p.snapshot())
}

func (p *project) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.open = false
	if p.rptFile == nil {
		return nil
	}
	err := p.rpt.Flush()
	return errors.Join(err, p.rptFile.Close())
}

func (p *project) record() StepRecord {
	r := StepRecord{
		Time:   p.t,
		Status: make(map[string]float64, len(p.pumps)),
		Energy: make(map[string]float64, len(p.pumps)),
		Level:  make(map[string]float64, len(p.tanks)),
	}
	for _, ps := range p.pumps {
		r.Status[ps.def.ID] = ps.status
		r.Energy[ps.def.ID] = ps.status * ps.power
	}
	for i, t := range p.tanks {
		r.Level[t.ID] = p.levels[i]
	}
	return r
}

func (p *project) snapshot() *Snapshot {
	steps := make([]StepRecord, len(p.steps))
	copy(steps, p.steps)
	return &Snapshot{Title: p.model.Title, Times: p.model.Times, Steps: steps}
}

func (p *project) report() {
	if p.rpt == nil {
		return
	}
	fmt.Fprintf(p.rpt, "%02d:00", p.t/3600)
	for _, ps := range p.pumps {
		fmt.Fprintf(p.rpt, "  pump %s status %.0f power %.3f", ps.def.ID, ps.status, ps.status*ps.power)
	}
	for i, t := range p.tanks {
		fmt.Fprintf(p.rpt, "  tank %s level %.3f", t.ID, p.levels[i])
	}
	fmt.Fprintln(p.rpt)
}
