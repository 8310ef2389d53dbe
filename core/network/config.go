package network

import (
	"fmt"

	"github.com/MarceloManteigass/EpanetAPI/core/solver"
)

// Config describes the topology source and the stepping options.
type Config struct {
	InpFile string `json:"inp_file"`
	RptFile string `json:"rpt_file"`
	// ReadBackStatus stores the status realized by the solver into the pump
	// series after each hour. Defaults to true.
	ReadBackStatus *bool `json:"read_back_status"`
	// InitMode is one of no_save, save, reinit, save_reinit. Defaults to save.
	InitMode string `json:"init_mode"`
	// SnapshotPath receives the binary hydraulic snapshot of each run when set.
	SnapshotPath string `json:"snapshot_path"`
}

// SetDefaults applies defaults.
func (c *Config) SetDefaults() {
	if c.ReadBackStatus == nil {
		v := true
		c.ReadBackStatus = &v
	}
	if c.InitMode == "" {
		c.InitMode = "save"
	}
}

// Validate checks mandatory fields and option consistency.
func (c Config) Validate() error {
	if c.InpFile == "" {
		return fmt.Errorf("network: inp_file is required")
	}
	mode, err := solver.ParseInitMode(c.InitMode)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if c.SnapshotPath != "" && !mode.Saves() {
		return fmt.Errorf("network: snapshot_path requires a saving init_mode, got %s", c.InitMode)
	}
	return nil
}

// Options converts the configuration into run options.
func (c Config) Options() (Options, error) {
	mode, err := solver.ParseInitMode(c.InitMode)
	if err != nil {
		return Options{}, err
	}
	readBack := true
	if c.ReadBackStatus != nil {
		readBack = *c.ReadBackStatus
	}
	return Options{ReadBackStatus: readBack, InitMode: mode, SnapshotPath: c.SnapshotPath}, nil
}
