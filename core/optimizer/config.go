package optimizer

import (
	"fmt"

	"github.com/MarceloManteigass/EpanetAPI/core/factory"
)

// Config holds the training parameters.
type Config struct {
	Iterations int `json:"iterations"`
	// Workers is the number of trials simulated in parallel. Each worker
	// owns a controller.
	Workers int `json:"workers"`
	// Seed of the proposer random source. Zero picks a time based seed.
	Seed     uint64               `json:"seed"`
	LogEvery int                  `json:"log_every"`
	Proposer factory.ModuleConfig `json:"proposer"`
}

func (c *Config) SetDefaults() {
	if c.Iterations == 0 {
		c.Iterations = 1000
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.LogEvery == 0 {
		c.LogEvery = 100
	}
	if c.Proposer.Type == "" {
		c.Proposer.Type = "random"
	}
}

func (c Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("optimizer: iterations must be positive, got %d", c.Iterations)
	}
	if c.Workers < 1 {
		return fmt.Errorf("optimizer: workers must be at least 1, got %d", c.Workers)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("optimizer: log_every must not be negative")
	}
	return nil
}

// ProposerConfig is the conf block of the built-in proposers.
type ProposerConfig struct {
	Seed            uint64  `json:"seed"`
	FlipProbability float64 `json:"flip_probability"`
}

var proposerRegistry = factory.NewRegistry[Proposer]()

func init() {
	proposerRegistry.MustRegister("random", func(conf map[string]any) (Proposer, error) {
		var c ProposerConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRandomProposer(c.Seed), nil
	})
	proposerRegistry.MustRegister("local_search", func(conf map[string]any) (Proposer, error) {
		var c ProposerConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewLocalSearchProposer(c.Seed, c.FlipProbability), nil
	})
}

// RegisterProposer adds a proposer factory identified by name.
func RegisterProposer(name string, f factory.Factory[Proposer]) error {
	return proposerRegistry.Register(name, f)
}

// NewProposer creates the configured proposer. The optimizer seed is used
// when the proposer conf does not set one.
func NewProposer(c Config) (Proposer, error) {
	conf := make(map[string]any, len(c.Proposer.Conf)+1)
	for k, v := range c.Proposer.Conf {
		conf[k] = v
	}
	if _, ok := conf["seed"]; !ok {
		conf["seed"] = c.Seed
	}
	cfg := factory.ModuleConfig{Type: c.Proposer.Type, Conf: conf}
	if cfg.Type == "" {
		cfg.Type = "random"
	}
	return proposerRegistry.Create(cfg)
}
