package schedule

import "fmt"

// Invariant names reported by InvariantViolation.
const (
	InvariantOverlap   = "berth-overlap"
	InvariantFeasible  = "feasibility"
	InvariantArrival   = "arrival"
	InvariantStatus    = "assignment-status"
	InvariantReference = "reference"
	InvariantWindow    = "window"
)

// InvariantViolation is returned when a change would leave the schedule in
// an invalid state. The schedule is unchanged when it is returned.
type InvariantViolation struct {
	Invariant string
	VesselID  string
	BerthID   string
	Detail    string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant %s violated (vessel=%s berth=%s): %s", e.Invariant, e.VesselID, e.BerthID, e.Detail)
}

// ConflictError signals that an update was computed against a stale
// snapshot. Callers recompute against the current snapshot and retry.
type ConflictError struct {
	UpdateID string
	Base     uint64
	Current  uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("update %s based on version %d, schedule is at %d", e.UpdateID, e.Base, e.Current)
}
