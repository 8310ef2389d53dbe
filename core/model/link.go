package model

// Increments is the number of samples held by every series: one per hour of
// the day plus the closing sample.
const Increments = 25

// ControlledLink is a network link whose on/off status is scheduled before a
// simulation and whose energy use is recorded during it.
type ControlledLink interface {
	ID() string
	// Inc returns the number of control increments of the series.
	Inc() int
	Status(hour int) (int, error)
	SetStatus(hour, value int) error
	SetEnergy(hour int, value float64) error
	Results() PumpResult
	// Clone returns an independent copy of the link and its series.
	Clone() ControlledLink
}

func checkHour(hour, n int) error {
	if hour < 0 || hour >= n {
		return ErrIndexOutOfRange
	}
	return nil
}
