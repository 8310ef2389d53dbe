//go:build !no_containers

package test

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/app"
	"github.com/MarceloManteigass/EpanetAPI/config"
	"github.com/MarceloManteigass/EpanetAPI/core/factory"
	"github.com/MarceloManteigass/EpanetAPI/core/trials"
	"github.com/MarceloManteigass/EpanetAPI/test/util"
)

const exampleNetwork = "../infra/hydraulics/testdata/example_network.inp"

//nolint:gocyclo
func TestOptimizePublishesScheduleOverMQTT(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Fatalf("mosquitto: %v", err)
	}
	defer cleanup()

	pumps, err := util.StartFakePumpController(broker, "station")
	if err != nil {
		t.Fatalf("pump controller: %v", err)
	}
	defer pumps.Close()

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Network.InpFile = exampleNetwork
	cfg.Optimizer.Iterations = 20
	cfg.Optimizer.Workers = 2
	cfg.Optimizer.Seed = 3
	cfg.Metrics.PrometheusAddr = "127.0.0.1:19107"
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.Trials = trials.Config{Backend: "sqlite", Path: filepath.Join(dir, "trials.db")}
	cfg.Export.ResultsPath = filepath.Join(dir, "results.json")
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "optimizer-e2e"
	cfg.MQTT.TopicPrefix = "station"
	cfg.MQTT.QoS = map[string]byte{"schedule": 1, "ack": 1}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = svc.Close() }()
	svc.Start(ctx)

	rep, err := svc.Optimize(ctx)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(rep.Deliveries) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(rep.Deliveries))
	}
	for _, d := range rep.Deliveries {
		if !d.Acknowledged {
			t.Fatalf("pump %s not acknowledged", d.PumpID)
		}
	}
	got := pumps.Received()
	for id, statuses := range rep.Schedule {
		cmd, ok := got[id]
		if !ok {
			t.Fatalf("pump %s received nothing", id)
		}
		if len(cmd.Schedule) != len(statuses) {
			t.Fatalf("pump %s: got %d statuses, want %d", id, len(cmd.Schedule), len(statuses))
		}
		for h := range statuses {
			if cmd.Schedule[h] != statuses[h] {
				t.Fatalf("pump %s hour %d mismatch", id, h)
			}
		}
	}

	recs, err := svc.Trials(ctx, trials.Query{RunID: rep.Summary.RunID})
	if err != nil {
		t.Fatalf("trials: %v", err)
	}
	if len(recs) != 20 {
		t.Fatalf("expected 20 recorded trials, got %d", len(recs))
	}

	metricsCtx, mcancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer mcancel()
	if err := util.WaitForMetric(metricsCtx, "http://127.0.0.1:19107/metrics", `trials_total{outcome="improved"}`); err != nil {
		t.Fatalf("metrics: %v", err)
	}
}
