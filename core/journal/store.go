// Package journal persists an append-only audit trail of committed schedule
// updates and rejected disruption events.
package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// Record captures one schedule decision.
type Record struct {
	Timestamp   time.Time           `json:"timestamp"`
	UpdateID    string              `json:"update_id"`
	Trigger     string              `json:"trigger"`
	Event       json.RawMessage     `json:"event,omitempty"`
	BaseVersion uint64              `json:"base_version"`
	Version     uint64              `json:"version"`
	Placed      []model.Assignment  `json:"placed,omitempty"`
	Released    []string            `json:"released,omitempty"`
	Cancelled   []string            `json:"cancelled,omitempty"`
	Unplaced    []schedule.Unplaced `json:"unplaced,omitempty"`
	Escalated   bool                `json:"escalated"`
	Error       string              `json:"error,omitempty"`
}

// Touches reports whether the record concerns the vessel.
func (r Record) Touches(vesselID string) bool {
	for _, a := range r.Placed {
		if a.VesselID == vesselID {
			return true
		}
	}
	for _, ids := range [][]string{r.Released, r.Cancelled} {
		for _, id := range ids {
			if id == vesselID {
				return true
			}
		}
	}
	for _, u := range r.Unplaced {
		if u.VesselID == vesselID {
			return true
		}
	}
	return false
}

// Query defines filters for retrieving records.
type Query struct {
	Start    time.Time
	End      time.Time
	VesselID string
	Trigger  string
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Trigger != "" && r.Trigger != q.Trigger {
		return false
	}
	if q.VesselID != "" && !r.Touches(q.VesselID) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
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
