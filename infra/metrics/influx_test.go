package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

type influxRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (r *influxRecorder) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.bodies = append(r.bodies, strings.TrimSpace(string(b)))
		r.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInfluxSink_RecordBest(t *testing.T) {
	rec := &influxRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	if err := sink.RecordBest(coremetrics.BestObjective{RunID: "r1", Iteration: 7, Objective: 1.23456, Time: now}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("optimizer_best").
		AddTag("run_id", "r1").
		AddTag("component", "optimizer").
		AddField("iteration", 7).
		AddField("objective", 1.235).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(rec.bodies) != 1 || rec.bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v", rec.bodies)
	}
}

func TestInfluxSink_RecordTrial(t *testing.T) {
	rec := &influxRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	now := time.Now()
	if err := sink.RecordTrial(coremetrics.TrialResult{RunID: "r1", Iteration: 1, Objective: 2, TotalEnergy: 12, FinalLevel: 5, Improved: true, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := sink.RecordTrial(coremetrics.TrialResult{RunID: "r1", Iteration: 2, Failed: true, Time: now}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(rec.bodies) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(rec.bodies))
	}
	if !strings.Contains(rec.bodies[0], "outcome=improved") || !strings.Contains(rec.bodies[0], "total_energy=12") {
		t.Errorf("unexpected trial point: %s", rec.bodies[0])
	}
	if !strings.Contains(rec.bodies[1], "outcome=failed") || strings.Contains(rec.bodies[1], "objective=") {
		t.Errorf("failed trial must not carry scores: %s", rec.bodies[1])
	}
}

func TestInfluxSink_RecordSimulation(t *testing.T) {
	rec := &influxRecorder{}
	srv := rec.server(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	res := model.Results{
		Pumps: []model.PumpResult{{ID: "P1", Status: []int{1, 0}, Energy: []float64{4, 0}}},
		Tanks: []model.TankResult{{ID: "T1", Level: []float64{2, 2.5}}},
	}
	if err := sink.RecordSimulation(coremetrics.SimulationResult{RunID: "r1", Results: res, Start: start}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(rec.bodies) != 1 {
		t.Fatalf("expected a single batch, got %d", len(rec.bodies))
	}
	lines := strings.Split(rec.bodies[0], "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 points, got %d: %s", len(lines), rec.bodies[0])
	}
	p := write.NewPointWithMeasurement("tank_hour").
		AddTag("tank_id", "T1").
		AddTag("hour", "1").
		AddField("level", 2.5).
		SetTime(start.Add(time.Hour)).
		AddTag("run_id", "r1")
	if got, want := lines[3], strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond)); got != want {
		t.Errorf("got %s want %s", got, want)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxVisualizer_Render(t *testing.T) {
	rec := &influxRecorder{}
	srv := rec.server(t)
	vis := NewInfluxVisualizer(NewInfluxSink(srv.URL, "token", "org", "bucket"))
	vis.now = func() time.Time { return time.Date(2024, 5, 1, 13, 30, 0, 0, time.UTC) }
	vis.Render(model.Results{Pumps: []model.PumpResult{{ID: "P1", Status: []int{1}, Energy: []float64{3}}}})
	if len(rec.bodies) != 1 {
		t.Fatalf("expected one write, got %d", len(rec.bodies))
	}
	midnight := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixNano()
	if !strings.HasSuffix(rec.bodies[0], " "+itoa(midnight)) {
		t.Errorf("point not stamped at midnight: %s", rec.bodies[0])
	}
}
