package metrics

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
	"github.com/MarceloManteigass/EpanetAPI/infra/logger"
	"github.com/MarceloManteigass/EpanetAPI/pkg/export"
)

// CSVVisualizer writes every rendered bundle to a CSV file in Dir.
type CSVVisualizer struct {
	Dir string
	log logger.Logger
	mu  sync.Mutex
	n   int
}

// NewCSVVisualizer returns a visualizer writing into dir.
func NewCSVVisualizer(dir string) *CSVVisualizer {
	return &CSVVisualizer{Dir: dir, log: logger.New("csv-visualizer")}
}

// Render writes results_<timestamp>_<n>.csv. Failures are logged.
func (v *CSVVisualizer) Render(res model.Results) {
	v.mu.Lock()
	v.n++
	name := fmt.Sprintf("results_%s_%d.csv", time.Now().Format("20060102T150405"), v.n)
	v.mu.Unlock()
	path := filepath.Join(v.Dir, name)
	if err := export.WriteFile(path, res); err != nil {
		v.log.Errorf("render results: %v", err)
		return
	}
	v.log.Infof("results written to %s", path)
}

// LogVisualizer logs a summary line per pump and tank.
type LogVisualizer struct {
	log logger.Logger
}

func NewLogVisualizer() *LogVisualizer {
	return &LogVisualizer{log: logger.New("visualizer")}
}

func (v *LogVisualizer) Render(res model.Results) {
	for _, p := range res.Pumps {
		on := 0
		for _, s := range p.Status {
			on += s
		}
		v.log.Infow("pump", map[string]any{"id": p.ID, "hours_on": on, "status": p.Status, "energy": p.Energy})
	}
	for _, t := range res.Tanks {
		v.log.Infow("tank", map[string]any{"id": t.ID, "level": t.Level})
	}
	v.log.Infow("totals", map[string]any{"energy": res.TotalEnergy(), "final_level": res.FinalLevel()})
}
