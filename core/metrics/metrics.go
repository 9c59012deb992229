package metrics

import (
	"time"

	"github.com/kilianp07/berthplan/core/model"
)

// PlanResult summarises one committed schedule update.
type PlanResult struct {
	UpdateID  string
	Trigger   string
	Version   uint64
	Placed    int
	Unplaced  int
	Cleared   int
	Escalated bool
	Objective float64
	Duration  time.Duration
	Time      time.Time
}

// MetricsSink records scheduling results for observability purposes.
type MetricsSink interface {
	RecordPlanResult(res PlanResult) error
}

// AssignmentEvent describes a placement made by an update.
type AssignmentEvent struct {
	UpdateID string
	VesselID string
	BerthID  string
	Category string
	Priority float64
	Window   model.TimeWindow
	Wait     time.Duration
	Time     time.Time
}

// AssignmentRecorder records individual placements.
type AssignmentRecorder interface {
	RecordAssignments(evs []AssignmentEvent) error
}

// UnplacedEvent describes a vessel left pending by an update.
type UnplacedEvent struct {
	UpdateID string
	VesselID string
	Reason   string
	Time     time.Time
}

// UnplacedRecorder records vessels the solver could not place.
type UnplacedRecorder interface {
	RecordUnplaced(evs []UnplacedEvent) error
}

// TransitionEvent is a vessel lifecycle change.
type TransitionEvent struct {
	VesselID string
	BerthID  string
	From     string
	To       string
	// Service and Wait are set on departure.
	Service time.Duration
	Wait    time.Duration
	Time    time.Time
}

// TransitionRecorder records lifecycle changes.
type TransitionRecorder interface {
	RecordTransition(ev TransitionEvent) error
}

// ConflictRecorder counts optimistic concurrency retries.
type ConflictRecorder interface {
	RecordConflict(trigger string) error
}

// RejectionEvent is a disruption event the engine could not absorb.
type RejectionEvent struct {
	Kind   string
	Reason string
	Time   time.Time
}

// RejectionRecorder records rejected disruption events.
type RejectionRecorder interface {
	RecordRejection(ev RejectionEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlanResult(PlanResult) error         { return nil }
func (NopSink) RecordAssignments([]AssignmentEvent) error { return nil }
func (NopSink) RecordUnplaced([]UnplacedEvent) error      { return nil }
func (NopSink) RecordTransition(TransitionEvent) error    { return nil }
func (NopSink) RecordConflict(string) error               { return nil }
func (NopSink) RecordRejection(RejectionEvent) error      { return nil }
