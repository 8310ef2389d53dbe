package mqtt

import "time"

// Client represents an MQTT client capable of sending pump schedules and
// waiting for acknowledgments from pump controllers.
type Client interface {
	// SendSchedule sends the hourly statuses to the given pump and returns
	// the command identifier used to track the acknowledgment.
	SendSchedule(pumpID string, statuses []int) (commandID string, err error)

	// WaitForAck waits for an acknowledgment for the provided command
	// identifier or until the timeout expires.
	WaitForAck(commandID string, timeout time.Duration) (bool, error)
}
