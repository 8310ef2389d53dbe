package model

import "fmt"

// Pump holds the hourly status and energy series of a single network pump.
// Status is set by the caller before a simulation, energy is filled in by
// the simulation itself.
type Pump struct {
	id     string
	status []int
	energy []float64
}

// NewPump returns a pump with zeroed series.
func NewPump(id string) *Pump {
	return &Pump{
		id:     id,
		status: make([]int, Increments),
		energy: make([]float64, Increments),
	}
}

// ID returns the pump identifier.
func (p *Pump) ID() string { return p.id }

// Inc returns the number of control increments.
func (p *Pump) Inc() int { return len(p.status) }

// SetStatus sets the status for the given hour. The value is validated
// before the index so an invalid value never modifies the series.
func (p *Pump) SetStatus(hour, value int) error {
	if value != 0 && value != 1 {
		return fmt.Errorf("pump %s hour %d value %d: %w", p.id, hour, value, ErrInvalidControlValue)
	}
	if err := checkHour(hour, len(p.status)); err != nil {
		return fmt.Errorf("pump %s hour %d: %w", p.id, hour, err)
	}
	p.status[hour] = value
	return nil
}

// Status returns the status for the given hour.
func (p *Pump) Status(hour int) (int, error) {
	if err := checkHour(hour, len(p.status)); err != nil {
		return 0, fmt.Errorf("pump %s hour %d: %w", p.id, hour, err)
	}
	return p.status[hour], nil
}

// SetEnergy stores the energy spent (kWh) during the given hour.
func (p *Pump) SetEnergy(hour int, value float64) error {
	if err := checkHour(hour, len(p.energy)); err != nil {
		return fmt.Errorf("pump %s hour %d: %w", p.id, hour, err)
	}
	p.energy[hour] = value
	return nil
}

// Energy returns the energy recorded for the given hour.
func (p *Pump) Energy(hour int) (float64, error) {
	if err := checkHour(hour, len(p.energy)); err != nil {
		return 0, fmt.Errorf("pump %s hour %d: %w", p.id, hour, err)
	}
	return p.energy[hour], nil
}

// Results returns a copy of the pump series.
func (p *Pump) Results() PumpResult {
	return PumpResult{
		ID:     p.id,
		Status: append([]int(nil), p.status...),
		Energy: append([]float64(nil), p.energy...),
	}
}

// Clone returns an independent copy of the pump.
func (p *Pump) Clone() ControlledLink {
	return &Pump{
		id:     p.id,
		status: append([]int(nil), p.status...),
		energy: append([]float64(nil), p.energy...),
	}
}
