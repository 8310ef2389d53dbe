package optimizer

import (
	"context"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// Controller is the simulation controller driven by the optimizer.
// *network.Network implements it.
type Controller interface {
	Reset()
	Pumps() []model.ControlledLink
	SetPumps(pumps []model.ControlledLink) error
	Run(ctx context.Context) error
	Results(visualize bool) model.Results
}

// ControllerFactory creates an independent controller for a parallel worker.
type ControllerFactory func() (Controller, error)

// ObjectiveFunc scores simulation results. Lower is better.
type ObjectiveFunc func(res model.Results) float64

// EnergyPerStoredWater divides the energy used by all pumps by the final
// level of all tanks plus one.
func EnergyPerStoredWater(res model.Results) float64 {
	return res.TotalEnergy() / (res.FinalLevel() + 1)
}
