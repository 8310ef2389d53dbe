package trials

import (
	"context"
	"time"

	"github.com/MarceloManteigass/EpanetAPI/core/model"
)

// Record captures one trial of a training run.
type Record struct {
	Timestamp   time.Time      `json:"timestamp"`
	RunID       string         `json:"run_id"`
	Iteration   int            `json:"iteration"`
	Objective   float64        `json:"objective"`
	TotalEnergy float64        `json:"total_energy"`
	FinalLevel  float64        `json:"final_level"`
	Improved    bool           `json:"improved"`
	Error       string         `json:"error,omitempty"`
	Schedule    model.Schedule `json:"schedule"`
}

// Query defines filters for retrieving records.
type Query struct {
	Start        time.Time
	End          time.Time
	RunID        string
	ImprovedOnly bool
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.ImprovedOnly && !r.Improved {
		return false
	}
	return true
}

// Store persists trial records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
