package mqtt

import (
	"fmt"
	"sync"
	"time"

	coremqtt "github.com/MarceloManteigass/EpanetAPI/core/mqtt"
)

// Client mirrors the core mqtt.Client interface.
type Client = coremqtt.Client

// MockPublisher is an in-memory Client acknowledging every schedule it
// accepts. Pumps listed in FailIDs fail to publish.
type MockPublisher struct {
	Messages   map[string][]int
	FailIDs    map[string]bool
	AckResults map[string]bool
	mu         sync.Mutex
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string][]int),
		FailIDs:    make(map[string]bool),
		AckResults: make(map[string]bool),
	}
}

// SendSchedule records the message or returns an error if configured to fail.
func (m *MockPublisher) SendSchedule(pumpID string, statuses []int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailIDs[pumpID] {
		return "", fmt.Errorf("publish failed")
	}
	m.Messages[pumpID] = append([]int(nil), statuses...)
	commandID := fmt.Sprintf("cmd-%s", pumpID)
	m.AckResults[commandID] = true
	return commandID, nil
}

// WaitForAck simulates an immediate acknowledgment based on the stored result.
func (m *MockPublisher) WaitForAck(commandID string, timeout time.Duration) (bool, error) {
	m.mu.Lock()
	ok, exists := m.AckResults[commandID]
	m.mu.Unlock()
	if !exists {
		return false, fmt.Errorf("%s: %w", commandID, coremqtt.ErrUnknownCommand)
	}
	return ok, nil
}
