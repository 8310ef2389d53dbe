package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/MarceloManteigass/EpanetAPI/core/metrics"
	"github.com/MarceloManteigass/EpanetAPI/core/model"
	"github.com/MarceloManteigass/EpanetAPI/infra/logger"
)

// InfluxSink writes trials and simulated series to an InfluxDB instance
// using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// InfluxConfig is the conf block of the influx sink and visualizer.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg.URL, cfg.Token, cfg.Org, cfg.Bucket)
	if !sink.healthy() {
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) healthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := s.client.Health(ctx)
	if err != nil {
		s.log.Errorf("influx health check error: %v", err)
		return false
	}
	if health.Status != "pass" {
		s.log.Errorf("influx health status: %s", health.Status)
		return false
	}
	return true
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordTrial writes one point per trial.
func (s *InfluxSink) RecordTrial(res coremetrics.TrialResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimizer_trial").
		AddTag("run_id", res.RunID).
		AddTag("outcome", outcome(res)).
		AddTag("component", "optimizer").
		AddField("iteration", res.Iteration).
		AddField("duration_ms", round3(res.Duration.Seconds()*1000)).
		SetTime(res.Time)
	if !res.Failed {
		p = p.AddField("objective", round3(res.Objective)).
			AddField("total_energy", round3(res.TotalEnergy)).
			AddField("final_level", round3(res.FinalLevel))
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordBest writes an improvement of the best objective.
func (s *InfluxSink) RecordBest(b coremetrics.BestObjective) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("optimizer_best").
		AddTag("run_id", b.RunID).
		AddTag("component", "optimizer").
		AddField("iteration", b.Iteration).
		AddField("objective", round3(b.Objective)).
		SetTime(b.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSimulation writes the hourly pump and tank series. Sample h is
// stamped at Start plus h hours.
func (s *InfluxSink) RecordSimulation(res coremetrics.SimulationResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := simulationPoints(res)
	if len(points) == 0 {
		return nil
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

func simulationPoints(res coremetrics.SimulationResult) []*write.Point {
	var points []*write.Point
	for _, pump := range res.Results.Pumps {
		for h := range pump.Status {
			p := write.NewPointWithMeasurement("pump_hour").
				AddTag("pump_id", pump.ID).
				AddTag("hour", strconv.Itoa(h)).
				AddField("status", pump.Status[h]).
				AddField("energy", round3(valueAt(pump.Energy, h))).
				SetTime(res.Start.Add(time.Duration(h) * time.Hour))
			if res.RunID != "" {
				p = p.AddTag("run_id", res.RunID)
			}
			points = append(points, p)
		}
	}
	for _, tank := range res.Results.Tanks {
		for h, level := range tank.Level {
			p := write.NewPointWithMeasurement("tank_hour").
				AddTag("tank_id", tank.ID).
				AddTag("hour", strconv.Itoa(h)).
				AddField("level", round3(level)).
				SetTime(res.Start.Add(time.Duration(h) * time.Hour))
			if res.RunID != "" {
				p = p.AddTag("run_id", res.RunID)
			}
			points = append(points, p)
		}
	}
	return points
}

func valueAt(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// InfluxVisualizer renders result bundles as InfluxDB series starting at
// the current day.
type InfluxVisualizer struct {
	sink *InfluxSink
	now  func() time.Time
}

// NewInfluxVisualizer returns a visualizer writing through sink.
func NewInfluxVisualizer(sink *InfluxSink) *InfluxVisualizer {
	return &InfluxVisualizer{sink: sink, now: time.Now}
}

// Render writes the bundle. Failures are logged.
func (v *InfluxVisualizer) Render(res model.Results) {
	start := v.now().Truncate(24 * time.Hour)
	if err := v.sink.RecordSimulation(coremetrics.SimulationResult{Results: res, Start: start}); err != nil {
		v.sink.log.Errorf("render results: %v", err)
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
