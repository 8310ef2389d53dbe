package solver

import (
	"fmt"
	"sync"
)

// Op names a Project operation for fault injection on MockToolkit.
type Op string

const (
	OpOpen    Op = "open"
	OpOpenH   Op = "openH"
	OpInitH   Op = "initH"
	OpRunH    Op = "runH"
	OpNextH   Op = "nextH"
	OpSetLink Op = "setLinkValue"
	OpGetLink Op = "getLinkValue"
	OpGetNode Op = "getNodeValue"
	OpCloseH  Op = "closeH"
	OpSaveH   Op = "saveH"
	OpClose   Op = "close"
)

const (
	defaultStep     = 900
	defaultDuration = 24 * 3600
	secondsPerHour  = 3600
)

// MockToolkit is a scripted Toolkit. Readings are produced by the optional
// callbacks, which receive the hour (elapsed seconds / 3600) of the current
// step. Unset callbacks yield zero. Counters are shared by all projects
// opened from the toolkit, so FailOn counts calls across projects.
type MockToolkit struct {
	PumpIDs     []string
	TankIDs     []string
	JunctionIDs []string

	// StepSeconds is the hydraulic tick, 900 when zero.
	StepSeconds int64
	// DurationSeconds is the simulated horizon, 24h when zero.
	DurationSeconds int64

	Energy         func(pumpID string, hour int, status float64) float64
	Level          func(tankID string, hour int) float64
	RealizedStatus func(pumpID string, hour int, requested float64) float64

	mu           sync.Mutex
	calls        map[Op]int
	failOn       map[Op]int
	openProjects int
	openSessions int
	saved        []string
}

// FailOn makes the n-th call (1-based) of op fail.
func (m *MockToolkit) FailOn(op Op, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == nil {
		m.failOn = make(map[Op]int)
	}
	m.failOn[op] = n
}

// Calls returns how many times op was invoked.
func (m *MockToolkit) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// OpenProjects returns the number of projects not yet closed.
func (m *MockToolkit) OpenProjects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openProjects
}

// OpenSessions returns the number of hydraulic sessions not yet closed.
func (m *MockToolkit) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openSessions
}

// Saved returns the paths passed to SaveHydraulics.
func (m *MockToolkit) Saved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.saved...)
}

func (m *MockToolkit) call(op Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[Op]int)
	}
	m.calls[op]++
	if n, ok := m.failOn[op]; ok && m.calls[op] == n {
		return Wrap(string(op), fmt.Errorf("injected failure on call %d", n))
	}
	return nil
}

// Open returns a new mock project.
func (m *MockToolkit) Open(inpPath, rptPath string) (Project, error) {
	if err := m.call(OpOpen); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.openProjects++
	m.mu.Unlock()
	step, dur := m.StepSeconds, m.DurationSeconds
	if step <= 0 {
		step = defaultStep
	}
	if dur <= 0 {
		dur = defaultDuration
	}
	return &mockProject{tk: m, step: step, duration: dur, status: make(map[string]float64)}, nil
}

type mockProject struct {
	tk       *MockToolkit
	step     int64
	duration int64
	t        int64
	hydOpen  bool
	init     bool
	mode     InitMode
	ran      bool
	closed   bool
	status   map[string]float64
}

func (p *mockProject) Links() ([]LinkInfo, error) {
	var out []LinkInfo
	for _, id := range p.tk.PumpIDs {
		out = append(out, LinkInfo{ID: id, Type: LinkPump})
	}
	return out, nil
}

func (p *mockProject) Nodes() ([]NodeInfo, error) {
	var out []NodeInfo
	for _, id := range p.tk.JunctionIDs {
		out = append(out, NodeInfo{ID: id, Type: NodeJunction})
	}
	for _, id := range p.tk.TankIDs {
		out = append(out, NodeInfo{ID: id, Type: NodeTank})
	}
	return out, nil
}

func (p *mockProject) OpenHydraulics() error {
	if err := p.tk.call(OpOpenH); err != nil {
		return err
	}
	if p.hydOpen {
		return Wrap(string(OpOpenH), fmt.Errorf("hydraulics already open"))
	}
	p.hydOpen = true
	p.tk.mu.Lock()
	p.tk.openSessions++
	p.tk.mu.Unlock()
	return nil
}

func (p *mockProject) InitHydraulics(mode InitMode) error {
	if err := p.tk.call(OpInitH); err != nil {
		return err
	}
	if !p.hydOpen {
		return Wrap(string(OpInitH), fmt.Errorf("hydraulics not open"))
	}
	p.init, p.mode, p.t = true, mode, 0
	return nil
}

func (p *mockProject) RunHydraulics() (int64, error) {
	if err := p.tk.call(OpRunH); err != nil {
		return 0, err
	}
	if !p.init {
		return 0, Wrap(string(OpRunH), fmt.Errorf("hydraulics not initialized"))
	}
	p.ran = true
	return p.t, nil
}

func (p *mockProject) NextHydraulics() (int64, error) {
	if err := p.tk.call(OpNextH); err != nil {
		return 0, err
	}
	if p.t >= p.duration {
		return 0, nil
	}
	step := p.step
	if p.t+step > p.duration {
		step = p.duration - p.t
	}
	p.t += step
	return step, nil
}

func (p *mockProject) hour() int { return int(p.t / secondsPerHour) }

func (p *mockProject) hasPump(id string) bool {
	for _, pid := range p.tk.PumpIDs {
		if pid == id {
			return true
		}
	}
	return false
}

func (p *mockProject) hasTank(id string) bool {
	for _, tid := range p.tk.TankIDs {
		if tid == id {
			return true
		}
	}
	return false
}

func (p *mockProject) SetLinkValue(id string, prop LinkProperty, value float64) error {
	if err := p.tk.call(OpSetLink); err != nil {
		return err
	}
	if !p.hasPump(id) {
		return Wrap(string(OpSetLink), fmt.Errorf("unknown link %s", id))
	}
	if prop != LinkStatus {
		return Wrap(string(OpSetLink), fmt.Errorf("property %d is read only", prop))
	}
	p.status[id] = value
	return nil
}

func (p *mockProject) LinkValue(id string, prop LinkProperty) (float64, error) {
	if err := p.tk.call(OpGetLink); err != nil {
		return 0, err
	}
	if !p.hasPump(id) {
		return 0, Wrap(string(OpGetLink), fmt.Errorf("unknown link %s", id))
	}
	st := p.status[id]
	switch prop {
	case LinkStatus:
		if p.tk.RealizedStatus != nil {
			return p.tk.RealizedStatus(id, p.hour(), st), nil
		}
		return st, nil
	case LinkEnergy:
		if p.tk.Energy != nil {
			return p.tk.Energy(id, p.hour(), st), nil
		}
		return 0, nil
	default:
		return 0, nil
	}
}

func (p *mockProject) NodeValue(id string, prop NodeProperty) (float64, error) {
	if err := p.tk.call(OpGetNode); err != nil {
		return 0, err
	}
	if !p.hasTank(id) {
		return 0, Wrap(string(OpGetNode), fmt.Errorf("unknown node %s", id))
	}
	if p.tk.Level != nil && prop != NodeDemand {
		return p.tk.Level(id, p.hour()), nil
	}
	return 0, nil
}

func (p *mockProject) CloseHydraulics() error {
	err := p.tk.call(OpCloseH)
	if p.hydOpen {
		p.hydOpen, p.init = false, false
		p.tk.mu.Lock()
		p.tk.openSessions--
		p.tk.mu.Unlock()
	}
	return err
}

func (p *mockProject) SaveHydraulics(path string) error {
	if err := p.tk.call(OpSaveH); err != nil {
		return err
	}
	if !p.ran || !p.mode.Saves() {
		return Wrap(string(OpSaveH), fmt.Errorf("no saved hydraulics"))
	}
	p.tk.mu.Lock()
	p.tk.saved = append(p.tk.saved, path)
	p.tk.mu.Unlock()
	return nil
}

func (p *mockProject) Close() error {
	err := p.tk.call(OpClose)
	if p.hydOpen {
		_ = p.CloseHydraulics()
	}
	if !p.closed {
		p.closed = true
		p.tk.mu.Lock()
		p.tk.openProjects--
		p.tk.mu.Unlock()
	}
	return err
}
