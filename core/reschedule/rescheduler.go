// Package reschedule turns disruption events into schedule updates. Only
// the assignments an event invalidates are cleared and re-placed; the rest
// of the schedule is held fixed unless a cleared vessel no longer fits, in
// which case every movable vessel is re-solved.
package reschedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
	"github.com/kilianp07/berthplan/core/solver"
)

// Outcome describes how an event was absorbed.
type Outcome struct {
	Kind      Kind                `json:"kind"`
	Cleared   []string            `json:"cleared"`
	Placed    []model.Assignment  `json:"placed"`
	Unplaced  []schedule.Unplaced `json:"unplaced"`
	Escalated bool                `json:"escalated"`
	Objective float64             `json:"objective"`
}

// Rescheduler is stateless and safe for concurrent use.
type Rescheduler struct {
	solver *solver.Solver
	log    logger.Logger
}

// New returns a Rescheduler placing vessels with s.
func New(s *solver.Solver, log logger.Logger) *Rescheduler {
	return &Rescheduler{solver: s, log: logger.OrNop(log)}
}

// Handle computes the update absorbing ev into snap. No start is placed
// before now unless now is zero. The returned update carries
// snap.Version() as its base and an empty ID.
func (r *Rescheduler) Handle(ctx context.Context, ev Event, snap *schedule.Schedule, now time.Time) (schedule.Update, Outcome, error) {
	if err := ev.Validate(); err != nil {
		return schedule.Update{}, Outcome{}, err
	}
	u, cleared, err := r.stage(ev, snap)
	if err != nil {
		return schedule.Update{}, Outcome{}, err
	}
	u.BaseVersion = snap.Version()
	u.Trigger = string(ev.Kind())
	out := Outcome{Kind: ev.Kind(), Cleared: cleared}

	res, err := r.resolve(ctx, snap, u, now)
	if err != nil {
		return schedule.Update{}, Outcome{}, err
	}
	if lost := unplacedAmong(res.Unplaced, cleared); len(lost) > 0 {
		r.log.Infof("event %s: %v could not be re-placed locally, escalating to full re-solve", ev.Kind(), lost)
		u.Release = appendUnique(u.Release, movableAssigned(snap, u)...)
		res, err = r.resolve(ctx, snap, u, now)
		if err != nil {
			return schedule.Update{}, Outcome{}, err
		}
		u.Escalated = true
		out.Escalated = true
	}

	u.Assign = append(u.Assign, res.Placed...)
	u.Unplaced = res.Unplaced
	out.Placed = res.Placed
	out.Unplaced = res.Unplaced
	out.Objective = res.Objective
	r.log.Debugw("event handled", map[string]any{
		"kind":      ev.Kind(),
		"cleared":   len(cleared),
		"placed":    len(res.Placed),
		"unplaced":  len(res.Unplaced),
		"escalated": out.Escalated,
	})
	return u, out, nil
}

// resolve previews u and places every Pending vessel of the preview.
func (r *Rescheduler) resolve(ctx context.Context, snap *schedule.Schedule, u schedule.Update, now time.Time) (solver.Result, error) {
	preview, err := snap.Preview(u)
	if err != nil {
		return solver.Result{}, err
	}
	return r.solver.SolveFrom(ctx, preview.Pending(), preview, now)
}

// stage translates ev into upserts, cancellations and releases and returns
// the vessels whose assignment it invalidates.
func (r *Rescheduler) stage(ev Event, snap *schedule.Schedule) (schedule.Update, []string, error) {
	var u schedule.Update
	switch e := ev.(type) {
	case VesselDelayed:
		v, err := movable(snap, e.VesselID, "delay")
		if err != nil {
			return u, nil, err
		}
		v.ETA = e.NewArrival
		u.Vessels = []model.Vessel{v}
		if a, ok := snap.AssignmentOf(v.ID); ok && a.Window.Start.Before(e.NewArrival) {
			u.Release = []string{v.ID}
		}

	case BerthClosed:
		b, ok := snap.Berth(e.BerthID)
		if !ok {
			return u, nil, fmt.Errorf("berth %s: %w", e.BerthID, model.ErrNotFound)
		}
		for _, a := range snap.OnBerth(b.ID) {
			if !a.Window.Overlaps(e.Window) {
				continue
			}
			v, _ := snap.Vessel(a.VesselID)
			switch v.Status {
			case model.VesselServicing:
				return u, nil, &schedule.InvariantViolation{Invariant: schedule.InvariantFeasible, VesselID: v.ID, BerthID: b.ID,
					Detail: fmt.Sprintf("closure %s overlaps a vessel in service", e.Window)}
			case model.VesselAssigned:
				u.Release = append(u.Release, v.ID)
			}
		}
		b.Maintenance = append(b.Maintenance, e.Window)
		u.Berths = []model.Berth{b}

	case VesselCancelled:
		v, err := movable(snap, e.VesselID, "cancel")
		if err != nil {
			return u, nil, err
		}
		u.Cancel = []string{v.ID}

	case NewArrival:
		v := e.Vessel.ToVessel()
		if v.ID == "" {
			return u, nil, &model.ValidationError{Field: "vessel.id", Reason: "required"}
		}
		if _, exists := snap.Vessel(v.ID); exists {
			return u, nil, &model.ValidationError{Field: "vessel.id", Reason: fmt.Sprintf("%s already registered", v.ID)}
		}
		u.Vessels = []model.Vessel{v}

	case DurationRevised:
		return r.revise(e, snap)

	default:
		return u, nil, fmt.Errorf("%w %q", ErrUnknownEvent, ev.Kind())
	}
	sort.Strings(u.Release)
	return u, append([]string(nil), u.Release...), nil
}

// revise applies a new duration. A vessel in service keeps its start and
// pushes out Assigned neighbours it now overlaps. An Assigned vessel keeps
// its window when the new one still fits, otherwise it is cleared.
func (r *Rescheduler) revise(e DurationRevised, snap *schedule.Schedule) (schedule.Update, []string, error) {
	var u schedule.Update
	v, ok := snap.Vessel(e.VesselID)
	if !ok {
		return u, nil, fmt.Errorf("vessel %s: %w", e.VesselID, model.ErrNotFound)
	}
	if !v.Status.Movable() && v.Status != model.VesselServicing {
		return u, nil, &model.ValidationError{Field: "vessel_id",
			Reason: fmt.Sprintf("cannot revise the duration of a %s vessel", v.Status)}
	}
	v.ServiceDuration = e.Effective()
	u.Vessels = []model.Vessel{v}

	a, assigned := snap.AssignmentOf(v.ID)
	if !assigned {
		return u, nil, nil
	}
	next := a
	next.Window = model.NewWindow(a.Window.Start, v.ServiceDuration)
	b, _ := snap.Berth(a.BerthID)
	var collide []string
	for _, other := range snap.OnBerth(a.BerthID) {
		if other.VesselID != v.ID && other.Window.Overlaps(next.Window) {
			collide = append(collide, other.VesselID)
		}
	}
	hitsMaintenance := false
	for _, m := range b.Maintenance {
		if m.Overlaps(next.Window) {
			hitsMaintenance = true
		}
	}

	if v.Status == model.VesselServicing {
		if hitsMaintenance {
			return u, nil, &schedule.InvariantViolation{Invariant: schedule.InvariantFeasible, VesselID: v.ID, BerthID: b.ID,
				Detail: fmt.Sprintf("revised window %s overlaps berth maintenance", next.Window)}
		}
		for _, id := range collide {
			other, _ := snap.Vessel(id)
			if !other.Status.Movable() {
				return u, nil, &schedule.InvariantViolation{Invariant: schedule.InvariantOverlap, VesselID: v.ID, BerthID: b.ID,
					Detail: fmt.Sprintf("revised window %s overlaps %s vessel %s", next.Window, other.Status, id)}
			}
			u.Release = append(u.Release, id)
		}
		u.Assign = []model.Assignment{next}
		sort.Strings(u.Release)
		return u, append([]string(nil), u.Release...), nil
	}

	if len(collide) > 0 || hitsMaintenance {
		u.Release = []string{v.ID}
		return u, []string{v.ID}, nil
	}
	u.Assign = []model.Assignment{next}
	return u, nil, nil
}

func movable(snap *schedule.Schedule, id, action string) (model.Vessel, error) {
	v, ok := snap.Vessel(id)
	if !ok {
		return model.Vessel{}, fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	if !v.Status.Movable() {
		return model.Vessel{}, &model.ValidationError{Field: "vessel_id",
			Reason: fmt.Sprintf("cannot %s a %s vessel", action, v.Status)}
	}
	return v, nil
}

// movableAssigned lists Assigned vessels of snap not already released or
// cancelled by u, excluding those u assigns explicitly.
func movableAssigned(snap *schedule.Schedule, u schedule.Update) []string {
	skip := map[string]bool{}
	for _, id := range u.Cancel {
		skip[id] = true
	}
	for _, a := range u.Assign {
		skip[a.VesselID] = true
	}
	var out []string
	for _, v := range snap.VesselsWithStatus(model.VesselAssigned) {
		if !skip[v.ID] {
			out = append(out, v.ID)
		}
	}
	return out
}

func unplacedAmong(unplaced []schedule.Unplaced, ids []string) []string {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []string
	for _, up := range unplaced {
		if want[up.VesselID] {
			out = append(out, up.VesselID)
		}
	}
	return out
}

func appendUnique(dst []string, ids ...string) []string {
	seen := map[string]bool{}
	for _, id := range dst {
		seen[id] = true
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			dst = append(dst, id)
		}
	}
	sort.Strings(dst)
	return dst
}
