package hydraulics

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Junction is a demand node.
type Junction struct {
	ID        string
	Elevation float64
	Demand    float64
	Pattern   string
}

// Reservoir is an infinite source at fixed head.
type Reservoir struct {
	ID   string
	Head float64
}

// Tank is a cylindrical storage node. Levels are in meters above Elevation.
type Tank struct {
	ID        string
	Elevation float64
	InitLevel float64
	MinLevel  float64
	MaxLevel  float64
	Diameter  float64
}

// Pipe connects two nodes.
type Pipe struct {
	ID       string
	From     string
	To       string
	Length   float64
	Diameter float64
}

// Pump lifts water from From to To. Either Curve or Power is set.
type Pump struct {
	ID      string
	From    string
	To      string
	Curve   string
	Power   float64
	Pattern string
}

// CurvePoint is one (flow, head) point of a pump curve.
type CurvePoint struct {
	X, Y float64
}

// Times holds the [TIMES] options in seconds.
type Times struct {
	Duration    int64
	HydStep     int64
	PatternStep int64
}

// Model is a parsed network file. Element slices keep the file order.
type Model struct {
	Title      string
	Junctions  []Junction
	Reservoirs []Reservoir
	Tanks      []Tank
	Pipes      []Pipe
	Pumps      []Pump
	Curves     map[string][]CurvePoint
	Patterns   map[string][]float64
	Times      Times
}

// ParseError locates a malformed line of a network file.
type ParseError struct {
	Line    int
	Section string
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d [%s]: %s", e.Line, e.Section, e.Msg)
}

// ParseFile parses the network file at path.
func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse reads a network in EPANET input format. Unsupported sections are
// skipped.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{
		Curves:   make(map[string][]CurvePoint),
		Patterns: make(map[string][]float64),
		Times:    Times{Duration: 24 * 3600, HydStep: 3600, PatternStep: 3600},
	}
	section := ""
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			section = strings.ToUpper(strings.Trim(line, "[] "))
			if section == "END" {
				break
			}
			continue
		}
		fields := strings.Fields(line)
		perr := func(format string, args ...any) error {
			return &ParseError{Line: n, Section: section, Msg: fmt.Sprintf(format, args...)}
		}
		nums := func(from, min int) ([]float64, error) {
			if len(fields) < from+min {
				return nil, perr("expected at least %d values, got %d", from+min, len(fields))
			}
			out := make([]float64, 0, len(fields)-from)
			for _, f := range fields[from:] {
				v, err := strconv.ParseFloat(f, 64)
				if err != nil {
					break
				}
				out = append(out, v)
			}
			if len(out) < min {
				return nil, perr("expected %d numeric values", min)
			}
			return out, nil
		}
		switch section {
		case "TITLE":
			if m.Title == "" {
				m.Title = line
			}
		case "JUNCTIONS":
			v, err := nums(1, 1)
			if err != nil {
				return nil, err
			}
			j := Junction{ID: fields[0], Elevation: v[0]}
			if len(v) > 1 {
				j.Demand = v[1]
			}
			if len(fields) > 3 {
				j.Pattern = fields[3]
			}
			m.Junctions = append(m.Junctions, j)
		case "RESERVOIRS":
			v, err := nums(1, 1)
			if err != nil {
				return nil, err
			}
			m.Reservoirs = append(m.Reservoirs, Reservoir{ID: fields[0], Head: v[0]})
		case "TANKS":
			v, err := nums(1, 5)
			if err != nil {
				return nil, err
			}
			t := Tank{ID: fields[0], Elevation: v[0], InitLevel: v[1], MinLevel: v[2], MaxLevel: v[3], Diameter: v[4]}
			if t.MaxLevel < t.MinLevel || t.Diameter <= 0 {
				return nil, perr("tank %s has inconsistent geometry", t.ID)
			}
			m.Tanks = append(m.Tanks, t)
		case "PIPES":
			if len(fields) < 3 {
				return nil, perr("pipe needs id and two nodes")
			}
			p := Pipe{ID: fields[0], From: fields[1], To: fields[2]}
			if len(fields) > 4 {
				v, err := nums(3, 2)
				if err != nil {
					return nil, err
				}
				p.Length, p.Diameter = v[0], v[1]
			}
			m.Pipes = append(m.Pipes, p)
		case "PUMPS":
			if len(fields) < 5 {
				return nil, perr("pump needs id, two nodes and a HEAD or POWER parameter")
			}
			p := Pump{ID: fields[0], From: fields[1], To: fields[2]}
			for i := 3; i+1 < len(fields); i += 2 {
				switch strings.ToUpper(fields[i]) {
				case "HEAD":
					p.Curve = fields[i+1]
				case "POWER":
					v, err := strconv.ParseFloat(fields[i+1], 64)
					if err != nil {
						return nil, perr("pump %s: bad power %q", p.ID, fields[i+1])
					}
					p.Power = v
				case "PATTERN":
					p.Pattern = fields[i+1]
				}
			}
			if p.Curve == "" && p.Power <= 0 {
				return nil, perr("pump %s has neither HEAD curve nor POWER", p.ID)
			}
			m.Pumps = append(m.Pumps, p)
		case "CURVES":
			v, err := nums(1, 2)
			if err != nil {
				return nil, err
			}
			m.Curves[fields[0]] = append(m.Curves[fields[0]], CurvePoint{X: v[0], Y: v[1]})
		case "PATTERNS":
			v, err := nums(1, 1)
			if err != nil {
				return nil, err
			}
			m.Patterns[fields[0]] = append(m.Patterns[fields[0]], v...)
		case "TIMES":
			if err := parseTimeOption(&m.Times, fields); err != nil {
				return nil, perr("%v", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return m, m.validate()
}

func (m *Model) validate() error {
	nodes := make(map[string]bool)
	for _, j := range m.Junctions {
		nodes[j.ID] = true
	}
	for _, r := range m.Reservoirs {
		nodes[r.ID] = true
	}
	for _, t := range m.Tanks {
		nodes[t.ID] = true
	}
	for _, p := range m.Pipes {
		if !nodes[p.From] || !nodes[p.To] {
			return fmt.Errorf("pipe %s references an unknown node", p.ID)
		}
	}
	for _, p := range m.Pumps {
		if !nodes[p.From] || !nodes[p.To] {
			return fmt.Errorf("pump %s references an unknown node", p.ID)
		}
		if p.Curve != "" && len(m.Curves[p.Curve]) == 0 {
			return fmt.Errorf("pump %s references unknown curve %s", p.ID, p.Curve)
		}
	}
	if m.Times.HydStep <= 0 || m.Times.Duration < 0 {
		return fmt.Errorf("invalid time options")
	}
	return nil
}

// parseTimeOption handles "DURATION 24:00", "HYDRAULIC TIMESTEP 0:15" and
// "PATTERN TIMESTEP 1 HOURS". Other options are ignored.
func parseTimeOption(t *Times, fields []string) error {
	key := strings.ToUpper(fields[0])
	rest := fields[1:]
	if len(fields) > 1 && strings.EqualFold(fields[1], "TIMESTEP") {
		key += " TIMESTEP"
		rest = fields[2:]
	}
	var dst *int64
	switch key {
	case "DURATION":
		dst = &t.Duration
	case "HYDRAULIC TIMESTEP":
		dst = &t.HydStep
	case "PATTERN TIMESTEP":
		dst = &t.PatternStep
	default:
		return nil
	}
	if len(rest) == 0 {
		return fmt.Errorf("%s needs a value", strings.ToLower(key))
	}
	unit := ""
	if len(rest) > 1 {
		unit = rest[1]
	}
	secs, err := parseClock(rest[0], unit)
	if err != nil {
		return err
	}
	*dst = secs
	return nil
}

// parseClock converts "h:mm[:ss]" or a decimal value with an optional unit
// (SEC, MIN, HOURS, DAYS; hours by default) to seconds.
func parseClock(v, unit string) (int64, error) {
	if strings.Contains(v, ":") {
		parts := strings.Split(v, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("bad clock value %q", v)
		}
		var secs int64
		mult := []int64{3600, 60, 1}
		for i, p := range parts {
			n, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("bad clock value %q", v)
			}
			secs += n * mult[i]
		}
		return secs, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("bad time value %q", v)
	}
	scale := 3600.0
	switch u := strings.ToUpper(unit); {
	case strings.HasPrefix(u, "SEC"):
		scale = 1
	case strings.HasPrefix(u, "MIN"):
		scale = 60
	case strings.HasPrefix(u, "DAY"):
		scale = 86400
	}
	return int64(f * scale), nil
}
