package trials

import "fmt"

// Config selects the trial store backend.
type Config struct {
	// Backend is one of none, jsonl, sqlite. Defaults to none.
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// Rotation of the jsonl backend. Disabled when MaxSizeMB is zero.
	MaxSizeMB  int `json:"max_size_mb"`
	MaxBackups int `json:"max_backups"`
	MaxAgeDays int `json:"max_age_days"`
}

func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
}

func (c Config) Validate() error {
	switch c.Backend {
	case "none":
		return nil
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("trials: path is required for backend %s", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("trials: unknown backend %q", c.Backend)
	}
}

// NewStore opens the store described by cfg.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("trials: unknown backend %q", cfg.Backend)
	}
}
