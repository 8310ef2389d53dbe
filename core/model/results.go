package model

import "gonum.org/v1/gonum/floats"

// PumpResult is the snapshot of a pump after a simulation.
type PumpResult struct {
	ID     string    `json:"id"`
	Status []int     `json:"status"`
	Energy []float64 `json:"energy"`
}

// TankResult is the snapshot of a tank after a simulation.
type TankResult struct {
	ID    string    `json:"id"`
	Level []float64 `json:"level"`
}

// Results bundles the pump and tank snapshots of a completed simulation.
type Results struct {
	Pumps []PumpResult `json:"pumps"`
	Tanks []TankResult `json:"tanks"`
}

// TotalEnergy returns the energy spent by all pumps over the whole run.
func (r Results) TotalEnergy() float64 {
	var total float64
	for _, p := range r.Pumps {
		total += floats.Sum(p.Energy)
	}
	return total
}

// FinalLevel returns the sum over all tanks of the last sampled level.
func (r Results) FinalLevel() float64 {
	var total float64
	for _, t := range r.Tanks {
		if n := len(t.Level); n > 0 {
			total += t.Level[n-1]
		}
	}
	return total
}
