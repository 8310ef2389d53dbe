package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/MarceloManteigass/EpanetAPI/core/factory"
	"github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/network"
	"github.com/MarceloManteigass/EpanetAPI/core/optimizer"
	"github.com/MarceloManteigass/EpanetAPI/core/trials"
	"github.com/MarceloManteigass/EpanetAPI/infra/monitoring"
	"github.com/MarceloManteigass/EpanetAPI/infra/mqtt"
)

type Config struct {
	Network   network.Config       `json:"network"`
	Optimizer optimizer.Config     `json:"optimizer"`
	Metrics   metrics.Config       `json:"metrics"`
	Trials    trials.Config        `json:"trials"`
	MQTT      mqtt.Config          `json:"mqtt"`
	Export    ExportConfig         `json:"export"`
	Visualize factory.ModuleConfig `json:"visualize"`
	Sentry    monitoring.Config    `json:"sentry"`
	LogLevel  string               `json:"log_level"`
}

// ExportConfig controls where the final results are written.
type ExportConfig struct {
	// ResultsPath receives the results bundle of the final evaluation. The
	// extension selects the format (.json or .csv). Empty disables export.
	ResultsPath string `json:"results_path"`
	// SchedulePath receives the best schedule in the same way.
	SchedulePath string `json:"schedule_path"`
}

func (c ExportConfig) Validate() error {
	for _, p := range []string{c.ResultsPath, c.SchedulePath} {
		if p == "" {
			continue
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".json", ".csv":
		default:
			return fmt.Errorf("export: unsupported format for %s", p)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Network.SetDefaults()
	c.Optimizer.SetDefaults()
	c.Trials.SetDefaults()
	c.MQTT.SetDefaults()
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks every section and reports all failures at once.
func (c Config) Validate() error {
	var errs []error
	errs = append(errs,
		c.Network.Validate(),
		c.Optimizer.Validate(),
		c.Trials.Validate(),
		c.MQTT.Validate(),
		c.Export.Validate(),
	)
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	return errors.Join(errs...)
}
