package mqtt

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// Delivery is the outcome of sending one pump schedule.
type Delivery struct {
	PumpID       string
	CommandID    string
	Acknowledged bool
	Err          error
}

// PublishSchedule sends every pump schedule, then waits for all
// acknowledgments. Pumps are processed in identifier order. The returned
// error joins the failures of all pumps.
func PublishSchedule(c Client, s model.Schedule, timeout time.Duration) ([]Delivery, error) {
	ids := s.PumpIDs()
	out := make([]Delivery, len(ids))
	for i, id := range ids {
		out[i].PumpID = id
		cmd, err := c.SendSchedule(id, s[id])
		if err != nil {
			out[i].Err = fmt.Errorf("send schedule to %s: %w", id, err)
			continue
		}
		out[i].CommandID = cmd
	}
	var errs []error
	for i := range out {
		d := &out[i]
		if d.Err != nil {
			errs = append(errs, d.Err)
			continue
		}
		ok, err := c.WaitForAck(d.CommandID, timeout)
		d.Acknowledged = ok
		if err != nil {
			d.Err = fmt.Errorf("ack from %s: %w", d.PumpID, err)
			errs = append(errs, d.Err)
		}
	}
	return out, errors.Join(errs...)
}
