package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MarceloManteigass/EpanetAPI/core/factory"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

func TestCSVVisualizer_Render(t *testing.T) {
	dir := t.TempDir()
	vis := NewCSVVisualizer(dir)
	vis.Render(model.Results{Pumps: []model.PumpResult{{ID: "P1", Status: []int{1}, Energy: []float64{2}}}})
	vis.Render(model.Results{})
	files, err := filepath.Glob(filepath.Join(dir, "results_*.csv"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "pump,P1,0,1,2,") {
		t.Errorf("unexpected content: %s", data)
	}
}

func TestNewVisualizer(t *testing.T) {
	v, err := NewVisualizer(factory.ModuleConfig{})
	if err != nil || v != nil {
		t.Fatalf("empty type should yield no visualizer, got %v %v", v, err)
	}
	v, err = NewVisualizer(factory.ModuleConfig{Type: "csv", Conf: map[string]any{"dir": t.TempDir()}})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if _, ok := v.(*CSVVisualizer); !ok {
		t.Fatalf("expected CSVVisualizer, got %T", v)
	}
	if _, err := NewVisualizer(factory.ModuleConfig{Type: "svg"}); err == nil {
		t.Fatalf("expected error for unknown visualizer")
	}
}
