package metrics

import (
	"github.com/MarceloManteigass/EpanetAPI/core/factory"
	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/network"
)

var visualizerRegistry = factory.NewRegistry[network.Visualizer]()

// init registers built-in metrics sinks and visualizers.
func init() {
	coremetrics.MustRegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSink()
	})
	coremetrics.MustRegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	visualizerRegistry.MustRegister("log", func(map[string]any) (network.Visualizer, error) {
		return NewLogVisualizer(), nil
	})
	visualizerRegistry.MustRegister("csv", func(conf map[string]any) (network.Visualizer, error) {
		var c struct {
			Dir string `json:"dir"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Dir == "" {
			c.Dir = "."
		}
		return NewCSVVisualizer(c.Dir), nil
	})
	visualizerRegistry.MustRegister("influx", func(conf map[string]any) (network.Visualizer, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxVisualizer(NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket)), nil
	})
}

// NewVisualizer creates the configured visualizer. An empty type yields nil.
func NewVisualizer(cfg factory.ModuleConfig) (network.Visualizer, error) {
	if cfg.Type == "" {
		return nil, nil
	}
	return visualizerRegistry.Create(cfg)
}
