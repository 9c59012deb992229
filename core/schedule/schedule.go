package schedule

import (
	"sort"

	"github.com/kilianp07/berthplan/core/model"
)

// Schedule is an immutable snapshot of vessels, berths and assignments.
// Accessors return copies so that readers can never alter a published
// snapshot.
type Schedule struct {
	version     uint64
	vessels     map[string]model.Vessel
	berths      map[string]model.Berth
	assignments map[string]model.Assignment
}

// Empty returns a schedule at version 0 with no data.
func Empty() *Schedule {
	return &Schedule{
		vessels:     map[string]model.Vessel{},
		berths:      map[string]model.Berth{},
		assignments: map[string]model.Assignment{},
	}
}

// Version increases by one for every committed change.
func (s *Schedule) Version() uint64 { return s.version }

// Vessel returns the vessel with the given id.
func (s *Schedule) Vessel(id string) (model.Vessel, bool) {
	v, ok := s.vessels[id]
	return v, ok
}

// Berth returns a copy of the berth with the given id.
func (s *Schedule) Berth(id string) (model.Berth, bool) {
	b, ok := s.berths[id]
	if !ok {
		return model.Berth{}, false
	}
	return b.Clone(), true
}

// AssignmentOf returns the assignment held by the vessel.
func (s *Schedule) AssignmentOf(vesselID string) (model.Assignment, bool) {
	a, ok := s.assignments[vesselID]
	return a, ok
}

// Vessels returns all vessels sorted by id.
func (s *Schedule) Vessels() []model.Vessel {
	out := make([]model.Vessel, 0, len(s.vessels))
	for _, v := range s.vessels {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VesselsWithStatus returns the vessels in any of the given states sorted by id.
func (s *Schedule) VesselsWithStatus(states ...model.VesselStatus) []model.Vessel {
	var out []model.Vessel
	for _, v := range s.Vessels() {
		for _, st := range states {
			if v.Status == st {
				out = append(out, v)
				break
			}
		}
	}
	return out
}

// Pending returns vessels waiting for a berth, sorted by id.
func (s *Schedule) Pending() []model.Vessel {
	return s.VesselsWithStatus(model.VesselPending)
}

// Berths returns copies of all berths sorted by id.
func (s *Schedule) Berths() []model.Berth {
	out := make([]model.Berth, 0, len(s.berths))
	for _, b := range s.berths {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Assignments returns every assignment ordered by berth, start and vessel.
func (s *Schedule) Assignments() []model.Assignment {
	out := make([]model.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	sortAssignments(out)
	return out
}

// OnBerth returns the assignments of a berth sorted by start.
func (s *Schedule) OnBerth(berthID string) []model.Assignment {
	var out []model.Assignment
	for _, a := range s.assignments {
		if a.BerthID == berthID {
			out = append(out, a)
		}
	}
	sortAssignments(out)
	return out
}

// Occupied lists the windows held on a berth, ignoring vessels for which
// skip returns true. A nil skip keeps every assignment.
func (s *Schedule) Occupied(berthID string, skip func(vesselID string) bool) []model.TimeWindow {
	var out []model.TimeWindow
	for _, a := range s.OnBerth(berthID) {
		if skip != nil && skip(a.VesselID) {
			continue
		}
		out = append(out, a.Window)
	}
	return out
}

// Query returns the assignments matching f.
func (s *Schedule) Query(f Filter) []model.Assignment {
	var out []model.Assignment
	for _, a := range s.Assignments() {
		if f.BerthID != "" && a.BerthID != f.BerthID {
			continue
		}
		if f.Window != nil && !a.Window.Overlaps(*f.Window) {
			continue
		}
		if f.Status != nil {
			v, ok := s.vessels[a.VesselID]
			if !ok || v.Status != *f.Status {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}

// Draft returns a mutable working copy of the schedule.
func (s *Schedule) Draft() *Draft {
	d := &Draft{
		base:        s.version,
		vessels:     make(map[string]model.Vessel, len(s.vessels)),
		berths:      make(map[string]model.Berth, len(s.berths)),
		assignments: make(map[string]model.Assignment, len(s.assignments)),
	}
	for k, v := range s.vessels {
		d.vessels[k] = v
	}
	for k, b := range s.berths {
		d.berths[k] = b
	}
	for k, a := range s.assignments {
		d.assignments[k] = a
	}
	return d
}

// Filter selects assignments in Query.
type Filter struct {
	BerthID string
	// Window keeps assignments intersecting it.
	Window *model.TimeWindow
	// Status keeps assignments whose vessel is in this state.
	Status *model.VesselStatus
}

func sortAssignments(as []model.Assignment) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].BerthID != as[j].BerthID {
			return as[i].BerthID < as[j].BerthID
		}
		if !as[i].Window.Start.Equal(as[j].Window.Start) {
			return as[i].Window.Start.Before(as[j].Window.Start)
		}
		return as[i].VesselID < as[j].VesselID
	})
}
