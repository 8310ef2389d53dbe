package model

import "fmt"

// Tank holds the hourly water level series of a network tank.
type Tank struct {
	id    string
	level []float64
}

// NewTank returns a tank with a zeroed level series.
func NewTank(id string) *Tank {
	return &Tank{id: id, level: make([]float64, Increments)}
}

// ID returns the tank identifier.
func (t *Tank) ID() string { return t.id }

// Inc returns the number of samples in the level series.
func (t *Tank) Inc() int { return len(t.level) }

// SetLevel stores the water level (m) measured at the given hour.
func (t *Tank) SetLevel(hour int, value float64) error {
	if err := checkHour(hour, len(t.level)); err != nil {
		return fmt.Errorf("tank %s hour %d: %w", t.id, hour, err)
	}
	t.level[hour] = value
	return nil
}

// Level returns the water level at the given hour.
func (t *Tank) Level(hour int) (float64, error) {
	if err := checkHour(hour, len(t.level)); err != nil {
		return 0, fmt.Errorf("tank %s hour %d: %w", t.id, hour, err)
	}
	return t.level[hour], nil
}

// Results returns a copy of the tank series.
func (t *Tank) Results() TankResult {
	return TankResult{ID: t.id, Level: append([]float64(nil), t.level...)}
}
