package schedule

import (
	"errors"
	"fmt"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
)

// Verify checks every schedule invariant and returns the first violation
// found, in a deterministic order.
func (s *Schedule) Verify(c feasibility.Checker) error {
	all := s.Assignments()
	for _, a := range all {
		v, ok := s.vessels[a.VesselID]
		if !ok {
			return &InvariantViolation{Invariant: InvariantReference, VesselID: a.VesselID, BerthID: a.BerthID, Detail: "unknown vessel"}
		}
		b, ok := s.berths[a.BerthID]
		if !ok {
			return &InvariantViolation{Invariant: InvariantReference, VesselID: a.VesselID, BerthID: a.BerthID, Detail: "unknown berth"}
		}
		if err := a.Window.Validate(); err != nil {
			return &InvariantViolation{Invariant: InvariantWindow, VesselID: a.VesselID, BerthID: a.BerthID, Detail: err.Error()}
		}
		switch v.Status {
		case model.VesselAssigned:
			if a.Window.Start.Before(v.ETA) {
				return &InvariantViolation{Invariant: InvariantArrival, VesselID: v.ID, BerthID: b.ID,
					Detail: fmt.Sprintf("window %s starts before arrival", a.Window)}
			}
			if err := fits(c, v, b, a.Window); err != nil {
				return err
			}
		case model.VesselServicing:
			if err := fits(c, v, b, a.Window); err != nil {
				return err
			}
		case model.VesselDeparted:
		default:
			return &InvariantViolation{Invariant: InvariantStatus, VesselID: v.ID, BerthID: b.ID,
				Detail: fmt.Sprintf("%s vessel holds an assignment", v.Status)}
		}
	}
	// all is sorted by berth then start, so checking neighbours suffices.
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.BerthID == cur.BerthID && prev.Window.Overlaps(cur.Window) {
			return &InvariantViolation{Invariant: InvariantOverlap, VesselID: cur.VesselID, BerthID: cur.BerthID,
				Detail: fmt.Sprintf("%s overlaps %s", cur, prev)}
		}
	}
	return nil
}

func fits(c feasibility.Checker, v model.Vessel, b model.Berth, w model.TimeWindow) error {
	err := c.Fits(v, b, w)
	if err == nil {
		return nil
	}
	var ie *feasibility.InfeasibleError
	if errors.As(err, &ie) {
		return &InvariantViolation{Invariant: InvariantFeasible, VesselID: v.ID, BerthID: b.ID, Detail: ie.Detail}
	}
	return err
}
