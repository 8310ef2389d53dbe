package solver

import "fmt"

// LinkType classifies a network link.
type LinkType int

const (
	LinkPipe LinkType = iota
	LinkPump
	LinkValve
)

func (t LinkType) String() string {
	switch t {
	case LinkPipe:
		return "PIPE"
	case LinkPump:
		return "PUMP"
	case LinkValve:
		return "VALVE"
	default:
		return "UNKNOWN"
	}
}

// NodeType classifies a network node.
type NodeType int

const (
	NodeJunction NodeType = iota
	NodeReservoir
	NodeTank
)

func (t NodeType) String() string {
	switch t {
	case NodeJunction:
		return "JUNCTION"
	case NodeReservoir:
		return "RESERVOIR"
	case NodeTank:
		return "TANK"
	default:
		return "UNKNOWN"
	}
}

// LinkInfo identifies a link of the topology.
type LinkInfo struct {
	ID   string
	Type LinkType
}

// NodeInfo identifies a node of the topology.
type NodeInfo struct {
	ID   string
	Type NodeType
}

// LinkProperty selects a numeric link property.
type LinkProperty int

const (
	// LinkStatus is 0 for closed/off and 1 for open/on.
	LinkStatus LinkProperty = iota
	// LinkEnergy is the power drawn by a pump in kW.
	LinkEnergy
	// LinkFlow is the flow through the link in L/s.
	LinkFlow
)

// NodeProperty selects a numeric node property.
type NodeProperty int

const (
	// NodePressure is the pressure head in m. For tanks it equals the water level.
	NodePressure NodeProperty = iota
	// NodeHead is the hydraulic head in m.
	NodeHead
	// NodeDemand is the current demand in L/s.
	NodeDemand
)

// InitMode controls how a hydraulic session is initialized.
type InitMode int

const (
	// InitNoSave initializes without keeping results for a later save.
	InitNoSave InitMode = 0
	// InitSave keeps the session results so they can be saved to a file.
	InitSave InitMode = 1
	// InitReinitFlows re-initializes link flows without saving.
	InitReinitFlows InitMode = 10
	// InitSaveReinit combines InitSave and InitReinitFlows.
	InitSaveReinit InitMode = 11
)

// Saves reports whether the mode keeps session results for saving.
func (m InitMode) Saves() bool { return m == InitSave || m == InitSaveReinit }

// Valid reports whether m is a known mode.
func (m InitMode) Valid() bool {
	switch m {
	case InitNoSave, InitSave, InitReinitFlows, InitSaveReinit:
		return true
	}
	return false
}

// Toolkit opens network topologies.
type Toolkit interface {
	// Open loads the topology at inpPath. Reports go to rptPath when not empty.
	Open(inpPath, rptPath string) (Project, error)
}

// Project is an opened topology. A Project is not safe for concurrent use.
type Project interface {
	Links() ([]LinkInfo, error)
	Nodes() ([]NodeInfo, error)

	OpenHydraulics() error
	InitHydraulics(mode InitMode) error
	// RunHydraulics solves the current time step and returns the elapsed
	// simulated time in seconds.
	RunHydraulics() (int64, error)
	// NextHydraulics advances to the next step and returns its length in
	// seconds. A non-positive value means the simulation is over.
	NextHydraulics() (int64, error)
	SetLinkValue(id string, prop LinkProperty, value float64) error
	LinkValue(id string, prop LinkProperty) (float64, error)
	NodeValue(id string, prop NodeProperty) (float64, error)
	CloseHydraulics() error
	// SaveHydraulics writes the results of the last session to path. The
	// session must have been initialized with a saving mode.
	SaveHydraulics(path string) error

	Close() error
}

// ParseInitMode converts a configuration name into an InitMode. Accepted
// names are "no_save", "save", "reinit" and "save_reinit".
func ParseInitMode(name string) (InitMode, error) {
	switch name {
	case "no_save":
		return InitNoSave, nil
	case "save", "":
		return InitSave, nil
	case "reinit":
		return InitReinitFlows, nil
	case "save_reinit":
		return InitSaveReinit, nil
	}
	return InitNoSave, fmt.Errorf("unknown init mode %q", name)
}
