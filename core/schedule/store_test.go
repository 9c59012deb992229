package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
)

var t0 = time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

func vessel(id string, eta time.Time) model.Vessel {
	return model.Vessel{ID: id, LengthM: 150, DraftM: 8, Category: "bulk", ETA: eta, ServiceDuration: 4 * time.Hour, Priority: 1}
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(feasibility.Checker{}, nil)
	_, err := s.AddBerth(model.Berth{ID: "B1", MaxLengthM: 200, MaxDraftM: 10, Categories: []string{"bulk"}})
	require.NoError(t, err)
	_, err = s.Submit(vessel("V1", t0))
	require.NoError(t, err)
	_, err = s.Submit(vessel("V2", t0))
	require.NoError(t, err)
	return s
}

func assign(id string, start time.Time) model.Assignment {
	return model.Assignment{VesselID: id, BerthID: "B1", Window: model.NewWindow(start, 4*time.Hour)}
}

func TestSubmitRejectsInvalidAndDuplicate(t *testing.T) {
	s := newStore(t)
	_, err := s.Submit(vessel("V1", t0))
	assert.True(t, model.IsValidation(err))

	bad := vessel("V3", t0)
	bad.ServiceDuration = -time.Hour
	_, err = s.Submit(bad)
	assert.True(t, model.IsValidation(err))
	_, ok := s.Snapshot().Vessel("V3")
	assert.False(t, ok, "invalid vessel must never enter the schedule")
}

func TestApplyCommitsAndBumpsVersion(t *testing.T) {
	s := newStore(t)
	base := s.Snapshot().Version()
	next, applied, err := s.Apply(Update{ID: "u1", BaseVersion: base, Assign: []model.Assignment{assign("V1", t0)}})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, base+1, next.Version())

	v, err := s.Vessel("V1")
	require.NoError(t, err)
	assert.Equal(t, model.VesselAssigned, v.Status)
	assert.Len(t, s.Query(Filter{BerthID: "B1"}), 1)
}

func TestApplyIsIdempotent(t *testing.T) {
	s := newStore(t)
	u := Update{ID: "u1", BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}}
	first, applied, err := s.Apply(u)
	require.NoError(t, err)
	require.True(t, applied)

	second, applied, err := s.Apply(u)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Same(t, first, second)
	assert.Equal(t, first.Assignments(), s.Snapshot().Assignments())
}

func TestApplyRejectsOverlapAtomically(t *testing.T) {
	s := newStore(t)
	before := s.Snapshot()
	_, _, err := s.Apply(Update{ID: "u1", BaseVersion: before.Version(), Assign: []model.Assignment{
		assign("V1", t0),
		assign("V2", t0.Add(2*time.Hour)),
	}})
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, InvariantOverlap, iv.Invariant)
	assert.Same(t, before, s.Snapshot(), "schedule must be unchanged")

	v, _ := s.Vessel("V1")
	assert.Equal(t, model.VesselPending, v.Status)
}

func TestApplyRejectsInfeasibleAndEarlyStart(t *testing.T) {
	s := newStore(t)
	base := s.Snapshot().Version()
	_, _, err := s.Apply(Update{BaseVersion: base, Assign: []model.Assignment{assign("V1", t0.Add(-time.Hour))}})
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, InvariantArrival, iv.Invariant)

	closed := model.Berth{ID: "B1", MaxLengthM: 200, MaxDraftM: 10, Categories: []string{"bulk"},
		Maintenance: []model.TimeWindow{model.NewWindow(t0.Add(time.Hour), time.Hour)}}
	_, _, err = s.Apply(Update{BaseVersion: base, Berths: []model.Berth{closed}, Assign: []model.Assignment{assign("V1", t0)}})
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, InvariantFeasible, iv.Invariant)
}

func TestApplyDetectsStaleSnapshot(t *testing.T) {
	s := newStore(t)
	stale := s.Snapshot().Version()
	_, _, err := s.Apply(Update{ID: "a", BaseVersion: stale, Assign: []model.Assignment{assign("V1", t0)}})
	require.NoError(t, err)

	_, _, err = s.Apply(Update{ID: "b", BaseVersion: stale, Assign: []model.Assignment{assign("V2", t0.Add(4*time.Hour))}})
	var ce *ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, stale, ce.Base)
	assert.Equal(t, stale+1, ce.Current)
}

func TestCancelAndRelease(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
	require.NoError(t, err)

	_, _, err = s.Apply(Update{BaseVersion: s.Snapshot().Version(), Release: []string{"V1"}, Cancel: []string{"V2"}})
	require.NoError(t, err)
	v1, _ := s.Vessel("V1")
	v2, _ := s.Vessel("V2")
	assert.Equal(t, model.VesselPending, v1.Status)
	assert.Equal(t, model.VesselCancelled, v2.Status)
	assert.Empty(t, s.Snapshot().Assignments())
}

func TestApplyRejectsAssignOutsideLifecycle(t *testing.T) {
	cases := map[string]struct {
		setup func(t *testing.T, s *Store)
		next  model.Assignment
		want  model.VesselStatus
	}{
		"cancelled": {
			setup: func(t *testing.T, s *Store) {
				_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Cancel: []string{"V1"}})
				require.NoError(t, err)
			},
			next: assign("V1", t0),
			want: model.VesselCancelled,
		},
		"departed": {
			setup: func(t *testing.T, s *Store) {
				_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
				require.NoError(t, err)
				_, _, err = s.Advance(t0.Add(5 * time.Hour))
				require.NoError(t, err)
			},
			next: assign("V1", t0.Add(8*time.Hour)),
			want: model.VesselDeparted,
		},
		"servicing moved in time": {
			setup: func(t *testing.T, s *Store) {
				_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
				require.NoError(t, err)
				_, _, err = s.Advance(t0.Add(time.Hour))
				require.NoError(t, err)
			},
			next: assign("V1", t0.Add(2*time.Hour)),
			want: model.VesselServicing,
		},
		"servicing moved to another berth": {
			setup: func(t *testing.T, s *Store) {
				_, err := s.AddBerth(model.Berth{ID: "B2", MaxLengthM: 200, MaxDraftM: 10, Categories: []string{"bulk"}})
				require.NoError(t, err)
				_, _, err = s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
				require.NoError(t, err)
				_, _, err = s.Advance(t0.Add(time.Hour))
				require.NoError(t, err)
			},
			next: model.Assignment{VesselID: "V1", BerthID: "B2", Window: model.NewWindow(t0, 4*time.Hour)},
			want: model.VesselServicing,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			tc.setup(t, s)
			before := s.Snapshot()

			_, applied, err := s.Apply(Update{ID: "late", BaseVersion: before.Version(), Assign: []model.Assignment{tc.next}})
			var iv *InvariantViolation
			require.ErrorAs(t, err, &iv)
			assert.Equal(t, InvariantStatus, iv.Invariant)
			assert.False(t, applied)
			assert.Equal(t, before.Version(), s.Snapshot().Version())
			v, _ := s.Vessel("V1")
			assert.Equal(t, tc.want, v.Status)
		})
	}
}

func TestApplyExtendsServicingVessel(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
	require.NoError(t, err)
	_, _, err = s.Advance(t0.Add(time.Hour))
	require.NoError(t, err)

	longer := model.Assignment{VesselID: "V1", BerthID: "B1", Window: model.NewWindow(t0, 6*time.Hour)}
	_, applied, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{longer}})
	require.NoError(t, err)
	assert.True(t, applied)
	v, _ := s.Vessel("V1")
	assert.Equal(t, model.VesselServicing, v.Status)
	a, _ := s.Snapshot().AssignmentOf("V1")
	assert.True(t, a.Window.End.Equal(t0.Add(6*time.Hour)))
}

func TestApplyRejectsStatusChangingUpsert(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Cancel: []string{"V1"}})
	require.NoError(t, err)

	revived := vessel("V1", t0)
	revived.Status = model.VesselPending
	_, _, err = s.Apply(Update{BaseVersion: s.Snapshot().Version(), Vessels: []model.Vessel{revived}})
	var iv *InvariantViolation
	require.ErrorAs(t, err, &iv)
	assert.Equal(t, InvariantStatus, iv.Invariant)
}

func TestLifecycleTransitions(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{
		assign("V1", t0), assign("V2", t0.Add(4*time.Hour)),
	}})
	require.NoError(t, err)

	tr, snap, err := s.Advance(t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, model.VesselServicing, tr[0].To)
	b, _ := snap.Berth("B1")
	assert.Equal(t, model.BerthOccupied, b.Status)

	_, err = s.MarkDeparted("V1", t0.Add(3*time.Hour))
	require.NoError(t, err)
	a, _ := s.Snapshot().AssignmentOf("V1")
	assert.True(t, a.Window.End.Equal(t0.Add(3*time.Hour)), "early departure truncates the window")

	_, err = s.MarkServicing("V2", t0.Add(5*time.Hour))
	require.NoError(t, err)
	tr, _, err = s.Advance(t0.Add(9 * time.Hour))
	require.NoError(t, err)
	require.Len(t, tr, 1)
	assert.Equal(t, "V2", tr[0].VesselID)
	assert.Equal(t, model.VesselDeparted, tr[0].To)
	b, _ = s.Snapshot().Berth("B1")
	assert.Equal(t, model.BerthAvailable, b.Status)
}

func TestMarkServicingOutsideWindow(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{assign("V1", t0)}})
	require.NoError(t, err)
	_, err = s.MarkServicing("V1", t0.Add(5*time.Hour))
	assert.True(t, model.IsValidation(err))
	_, err = s.MarkServicing("V2", t0)
	var iv *InvariantViolation
	assert.ErrorAs(t, err, &iv)
	_, err = s.MarkServicing("nope", t0)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestQueryFilters(t *testing.T) {
	s := newStore(t)
	_, _, err := s.Apply(Update{BaseVersion: s.Snapshot().Version(), Assign: []model.Assignment{
		assign("V1", t0), assign("V2", t0.Add(4*time.Hour)),
	}})
	require.NoError(t, err)

	w := model.NewWindow(t0.Add(5*time.Hour), time.Hour)
	got := s.Query(Filter{Window: &w})
	require.Len(t, got, 1)
	assert.Equal(t, "V2", got[0].VesselID)

	st := model.VesselAssigned
	assert.Len(t, s.Query(Filter{Status: &st}), 2)
	assert.Empty(t, s.Query(Filter{BerthID: "B9"}))
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				assert.NoError(t, snap.Verify(feasibility.Checker{}))
			}
		}()
	}
	for i := 0; i < 20; i++ {
		base := s.Snapshot().Version()
		u := Update{BaseVersion: base, Release: nil}
		if i%2 == 0 {
			u.Assign = []model.Assignment{assign("V1", t0)}
		} else {
			u.Release = []string{"V1"}
		}
		_, _, err := s.Apply(u)
		require.NoError(t, err)
	}
	wg.Wait()
}
