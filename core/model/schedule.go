package model

import (
	"fmt"
	"sort"
)

// Schedule maps a pump identifier to its on/off value for every increment.
type Schedule map[string][]int

// ScheduleOf extracts the status series of the given pumps.
func ScheduleOf(pumps []ControlledLink) Schedule {
	s := make(Schedule, len(pumps))
	for _, p := range pumps {
		s[p.ID()] = p.Results().Status
	}
	return s
}

// PumpIDs returns the scheduled pump identifiers in sorted order.
func (s Schedule) PumpIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy of the schedule.
func (s Schedule) Clone() Schedule {
	cp := make(Schedule, len(s))
	for id, v := range s {
		cp[id] = append([]int(nil), v...)
	}
	return cp
}

// Apply writes the schedule into the status series of pumps. Pumps missing
// from the schedule are left untouched. Values beyond a pump's increments are
// rejected.
func (s Schedule) Apply(pumps []ControlledLink) error {
	for _, p := range pumps {
		values, ok := s[p.ID()]
		if !ok {
			continue
		}
		if len(values) > p.Inc() {
			return fmt.Errorf("schedule for pump %s has %d values: %w", p.ID(), len(values), ErrIndexOutOfRange)
		}
		for h, v := range values {
			if err := p.SetStatus(h, v); err != nil {
				return err
			}
		}
	}
	return nil
}
