package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/core/model"
)

// maxAppliedIDs bounds the memory used to detect duplicate commits.
const maxAppliedIDs = 4096

// Store owns the committed schedule. Writers are serialised by a single
// lock; readers get the current immutable snapshot.
type Store struct {
	mu      sync.RWMutex
	current *Schedule
	checker feasibility.Checker
	log     logger.Logger

	applied map[string]uint64
	order   []string
}

// NewStore creates an empty store validating against checker.
func NewStore(checker feasibility.Checker, log logger.Logger) *Store {
	return &Store{
		current: Empty(),
		checker: checker,
		log:     logger.OrNop(log),
		applied: make(map[string]uint64),
	}
}

// Snapshot returns the current schedule. The snapshot never changes.
func (s *Store) Snapshot() *Schedule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Query returns assignments of the current snapshot matching f.
func (s *Store) Query(f Filter) []model.Assignment {
	return s.Snapshot().Query(f)
}

// Vessel returns the current state of a vessel.
func (s *Store) Vessel(id string) (model.Vessel, error) {
	v, ok := s.Snapshot().Vessel(id)
	if !ok {
		return model.Vessel{}, fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	return v, nil
}

// Submit registers a new vessel as Pending.
func (s *Store) Submit(v model.Vessel) (*Schedule, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	v.Status = model.VesselPending
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.current.vessels[v.ID]; exists {
		return nil, &model.ValidationError{Field: "id", Reason: fmt.Sprintf("vessel %s already registered", v.ID)}
	}
	d := s.current.Draft()
	d.PutVessel(v)
	return s.commit(d)
}

// AddBerth inserts or replaces a berth. Replacing a berth is rejected when
// existing assignments would no longer be valid.
func (s *Store) AddBerth(b model.Berth) (*Schedule, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.current.Draft()
	d.PutBerth(b)
	return s.commit(d)
}

// Apply commits u atomically. Re-applying an update id already committed is
// a no-op and returns applied=false. An update computed against another
// version fails with *ConflictError. Any invariant failure leaves the
// schedule unchanged.
func (s *Store) Apply(u Update) (*Schedule, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID != "" {
		if _, dup := s.applied[u.ID]; dup {
			s.log.Debugf("update %s already applied, skipping", u.ID)
			return s.current, false, nil
		}
	}
	if u.BaseVersion != s.current.version {
		return nil, false, &ConflictError{UpdateID: u.ID, Base: u.BaseVersion, Current: s.current.version}
	}
	d := s.current.Draft()
	if err := u.stage(d); err != nil {
		return nil, false, err
	}
	next, err := s.commit(d)
	if err != nil {
		return nil, false, err
	}
	if u.ID != "" {
		s.remember(u.ID, next.version)
	}
	return next, true, nil
}

// MarkServicing moves an Assigned vessel to Servicing at time at, which
// must fall inside its window.
func (s *Store) MarkServicing(id string, at time.Time) (*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, a, err := s.assigned(id)
	if err != nil {
		return nil, err
	}
	if v.Status != model.VesselAssigned {
		return nil, &InvariantViolation{Invariant: InvariantStatus, VesselID: id, BerthID: a.BerthID,
			Detail: fmt.Sprintf("cannot start servicing a %s vessel", v.Status)}
	}
	if !a.Window.Contains(at) {
		return nil, &model.ValidationError{Field: "time", Reason: fmt.Sprintf("%s outside window %s", at.Format(time.RFC3339), a.Window)}
	}
	d := s.current.Draft()
	_ = d.SetStatus(id, model.VesselServicing)
	return s.commit(d)
}

// MarkDeparted completes the vessel's call. A departure before the end of
// the window truncates the window and frees the berth.
func (s *Store) MarkDeparted(id string, at time.Time) (*Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, a, err := s.assigned(id)
	if err != nil {
		return nil, err
	}
	if !v.Status.Active() {
		return nil, &InvariantViolation{Invariant: InvariantStatus, VesselID: id, BerthID: a.BerthID,
			Detail: fmt.Sprintf("cannot depart a %s vessel", v.Status)}
	}
	if !at.After(a.Window.Start) {
		return nil, &model.ValidationError{Field: "time", Reason: fmt.Sprintf("departure %s not after window start", at.Format(time.RFC3339))}
	}
	d := s.current.Draft()
	if at.Before(a.Window.End) {
		a.Window.End = at
	}
	d.assignments[id] = a
	_ = d.SetStatus(id, model.VesselDeparted)
	return s.commit(d)
}

// Transition is a lifecycle change performed by Advance.
type Transition struct {
	VesselID string             `json:"vessel_id"`
	BerthID  string             `json:"berth_id"`
	From     model.VesselStatus `json:"from"`
	To       model.VesselStatus `json:"to"`
	At       time.Time          `json:"at"`
}

// Advance applies the time-driven transitions Assigned→Servicing→Departed
// for the given instant and refreshes berth occupancy flags.
func (s *Store) Advance(now time.Time) ([]Transition, *Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.current.Draft()
	var out []Transition
	occupied := map[string]bool{}
	for _, a := range s.current.Assignments() {
		v := s.current.vessels[a.VesselID]
		next := v.Status
		switch {
		case !v.Status.Active():
		case !now.Before(a.Window.End):
			next = model.VesselDeparted
		case v.Status == model.VesselAssigned && a.Window.Contains(now):
			next = model.VesselServicing
		}
		if next == model.VesselServicing {
			occupied[a.BerthID] = true
		}
		if next != v.Status {
			_ = d.SetStatus(v.ID, next)
			out = append(out, Transition{VesselID: v.ID, BerthID: a.BerthID, From: v.Status, To: next, At: now})
		}
	}
	berthChanged := false
	for id, b := range s.current.berths {
		if b.Status == model.BerthClosed {
			continue
		}
		want := model.BerthAvailable
		if occupied[id] {
			want = model.BerthOccupied
		}
		if b.Status != want {
			nb := b.Clone()
			nb.Status = want
			d.berths[id] = nb
			berthChanged = true
		}
	}
	if len(out) == 0 && !berthChanged {
		return nil, s.current, nil
	}
	next, err := s.commit(d)
	if err != nil {
		return nil, nil, err
	}
	return out, next, nil
}

func (s *Store) assigned(id string) (model.Vessel, model.Assignment, error) {
	v, ok := s.current.vessels[id]
	if !ok {
		return model.Vessel{}, model.Assignment{}, fmt.Errorf("vessel %s: %w", id, model.ErrNotFound)
	}
	a, ok := s.current.assignments[id]
	if !ok {
		return model.Vessel{}, model.Assignment{}, &InvariantViolation{Invariant: InvariantStatus, VesselID: id,
			Detail: fmt.Sprintf("%s vessel holds no assignment", v.Status)}
	}
	return v, a, nil
}

// commit verifies the draft and publishes it. Callers hold s.mu.
func (s *Store) commit(d *Draft) (*Schedule, error) {
	next := d.freeze(s.current.version + 1)
	if err := next.Verify(s.checker); err != nil {
		s.log.Warnf("rejecting change: %v", err)
		return nil, err
	}
	s.current = next
	return next, nil
}

func (s *Store) remember(id string, version uint64) {
	s.applied[id] = version
	s.order = append(s.order, id)
	if len(s.order) > maxAppliedIDs {
		delete(s.applied, s.order[0])
		s.order = s.order[1:]
	}
}
