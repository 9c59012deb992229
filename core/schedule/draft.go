package schedule

import (
	"fmt"

	"github.com/kilianp07/berthplan/core/model"
)

// Draft is a mutable copy of a Schedule used to stage changes before they
// are verified and frozen.
type Draft struct {
	base        uint64
	vessels     map[string]model.Vessel
	berths      map[string]model.Berth
	assignments map[string]model.Assignment
}

// Vessel returns the staged vessel.
func (d *Draft) Vessel(id string) (model.Vessel, bool) {
	v, ok := d.vessels[id]
	return v, ok
}

// Berth returns the staged berth.
func (d *Draft) Berth(id string) (model.Berth, bool) {
	b, ok := d.berths[id]
	return b, ok
}

// AssignmentOf returns the staged assignment of a vessel.
func (d *Draft) AssignmentOf(id string) (model.Assignment, bool) {
	a, ok := d.assignments[id]
	return a, ok
}

// PutVessel inserts or replaces a vessel.
func (d *Draft) PutVessel(v model.Vessel) { d.vessels[v.ID] = v }

// PutBerth inserts or replaces a berth, normalising categories and
// maintenance order.
func (d *Draft) PutBerth(b model.Berth) { d.berths[b.ID] = b.Normalized() }

// SetStatus changes the status of an existing vessel.
func (d *Draft) SetStatus(id string, st model.VesselStatus) error {
	v, ok := d.vessels[id]
	if !ok {
		return fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	v.Status = st
	d.vessels[id] = v
	return nil
}

// Assign records the assignment and marks a movable vessel Assigned. A
// Servicing vessel may only have its window end revised: berth and start
// stay fixed. Cancelled and Departed vessels cannot be assigned.
func (d *Draft) Assign(a model.Assignment) error {
	v, ok := d.vessels[a.VesselID]
	if !ok {
		return fmt.Errorf("vessel %s: %w", a.VesselID, model.ErrNotFound)
	}
	switch {
	case v.Status.Movable():
		v.Status = model.VesselAssigned
	case v.Status == model.VesselServicing:
		cur, held := d.assignments[v.ID]
		if !held || cur.BerthID != a.BerthID || !cur.Window.Start.Equal(a.Window.Start) {
			return &InvariantViolation{Invariant: InvariantStatus, VesselID: v.ID, BerthID: a.BerthID,
				Detail: "a vessel in service keeps its berth and start"}
		}
	default:
		return &InvariantViolation{Invariant: InvariantStatus, VesselID: v.ID, BerthID: a.BerthID,
			Detail: fmt.Sprintf("cannot assign a %s vessel", v.Status)}
	}
	d.vessels[v.ID] = v
	d.assignments[v.ID] = a
	return nil
}

// Release drops the assignment of a movable vessel and returns it to Pending.
func (d *Draft) Release(id string) error {
	v, ok := d.vessels[id]
	if !ok {
		return fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	if !v.Status.Movable() {
		return &InvariantViolation{Invariant: InvariantStatus, VesselID: id,
			Detail: fmt.Sprintf("cannot release a %s vessel", v.Status)}
	}
	delete(d.assignments, id)
	v.Status = model.VesselPending
	d.vessels[id] = v
	return nil
}

// Cancel removes the assignment and marks the vessel Cancelled.
func (d *Draft) Cancel(id string) error {
	v, ok := d.vessels[id]
	if !ok {
		return fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	if !v.Status.Movable() {
		return &InvariantViolation{Invariant: InvariantStatus, VesselID: id,
			Detail: fmt.Sprintf("cannot cancel a %s vessel", v.Status)}
	}
	delete(d.assignments, id)
	v.Status = model.VesselCancelled
	d.vessels[id] = v
	return nil
}

// Freeze returns an immutable schedule carrying the draft's base version.
func (d *Draft) Freeze() *Schedule {
	return d.freeze(d.base)
}

func (d *Draft) freeze(version uint64) *Schedule {
	s := &Schedule{
		version:     version,
		vessels:     make(map[string]model.Vessel, len(d.vessels)),
		berths:      make(map[string]model.Berth, len(d.berths)),
		assignments: make(map[string]model.Assignment, len(d.assignments)),
	}
	for k, v := range d.vessels {
		s.vessels[k] = v
	}
	for k, b := range d.berths {
		s.berths[k] = b.Clone()
	}
	for k, a := range d.assignments {
		s.assignments[k] = a
	}
	return s
}
