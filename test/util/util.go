// Package util provides helper functions shared across integration tests.
//
// StartMosquitto launches a disposable Mosquitto broker in a Docker container
// for MQTT-based tests. It returns the broker URL and a cleanup function.
//
// WaitForMetric polls a Prometheus metrics endpoint until the desired metric
// appears in the output.
//
// FakePumpController answers schedule commands the way a pump station does.
package util

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// Default timeouts for helper operations
	MosquittoReadyTimeout = 5 * time.Second
	MetricTimeout         = 5 * time.Second

	pollInterval = 50 * time.Millisecond
)

// WaitForMetric polls the given metrics URL until the provided substring is
// found in the output or the context is done.
func WaitForMetric(ctx context.Context, metricsURL, substr string) error {
	for {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, metricsURL, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			body, rerr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if rerr != nil {
				return fmt.Errorf("read metrics body: %w", rerr)
			}
			if strings.Contains(string(body), substr) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("metric %q not found: %w", substr, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

// StartMosquitto launches a temporary Mosquitto broker inside a Docker
// container and returns its broker URL along with a cleanup function.
// Docker must be reachable.
func StartMosquitto(ctx context.Context) (string, func(), error) {
	conf := `listener 1883
allow_anonymous true
persistence false
log_dest stdout
log_type error
log_type warning
log_type notice
log_type information
connection_messages true
log_timestamp true
`

	dir, err := os.MkdirTemp("", "mosq")
	if err != nil {
		return "", nil, err
	}
	path := filepath.Join(dir, "mosquitto.conf")
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
		Files: []tc.ContainerFile{
			{
				HostFilePath:      path,
				ContainerFilePath: "/mosquitto/config/mosquitto.conf",
				FileMode:          0644,
			},
		},
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}

	cleanup := func() {
		_ = cont.Terminate(context.Background())
		_ = os.RemoveAll(dir)
	}

	host, err := cont.Host(ctx)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	port, err := cont.MappedPort(ctx, "1883")
	if err != nil {
		cleanup()
		return "", nil, err
	}
	broker := fmt.Sprintf("tcp://%s:%s", host, port.Port())

	waitCtx, cancel := context.WithTimeout(ctx, MosquittoReadyTimeout)
	defer cancel()
	if err := waitForMQTTReady(waitCtx, broker); err != nil {
		cleanup()
		return "", nil, err
	}

	return broker, cleanup, nil
}

func waitForMQTTReady(ctx context.Context, broker string) error {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("probe")
	for {
		cli := paho.NewClient(opts)
		token := cli.Connect()
		token.Wait()
		if token.Error() == nil {
			cli.Disconnect(100)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ScheduleCommand is a schedule message received by FakePumpController.
type ScheduleCommand struct {
	CommandID string `json:"command_id"`
	PumpID    string `json:"pump_id"`
	Schedule  []int  `json:"schedule"`
}

// FakePumpController subscribes to <prefix>/+/schedule and acknowledges
// every command on <prefix>/<pump>/ack.
type FakePumpController struct {
	cli    paho.Client
	prefix string

	mu       sync.Mutex
	received map[string]ScheduleCommand
}

// StartFakePumpController connects to broker and starts acknowledging.
func StartFakePumpController(broker, prefix string) (*FakePumpController, error) {
	f := &FakePumpController{prefix: prefix, received: make(map[string]ScheduleCommand)}
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(fmt.Sprintf("pump-controller-%d", time.Now().UnixNano()))
	f.cli = paho.NewClient(opts)
	if token := f.cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	token := f.cli.Subscribe(prefix+"/+/schedule", 1, f.onSchedule)
	if token.Wait() && token.Error() != nil {
		f.cli.Disconnect(100)
		return nil, token.Error()
	}
	return f, nil
}

func (f *FakePumpController) onSchedule(c paho.Client, msg paho.Message) {
	var cmd ScheduleCommand
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return
	}
	f.mu.Lock()
	f.received[cmd.PumpID] = cmd
	f.mu.Unlock()
	ack, _ := json.Marshal(map[string]string{"command_id": cmd.CommandID})
	c.Publish(f.prefix+"/"+cmd.PumpID+"/ack", 1, false, ack)
}

// Received returns the last command received per pump.
func (f *FakePumpController) Received() map[string]ScheduleCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]ScheduleCommand, len(f.received))
	for k, v := range f.received {
		out[k] = v
	}
	return out
}

// Close disconnects the controller.
func (f *FakePumpController) Close() { f.cli.Disconnect(100) }
