package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

var t0 = time.Date(2025, 5, 12, 8, 0, 0, 0, time.UTC)

func vessel(id string, eta time.Time, lengthM, prio float64) model.Vessel {
	return model.Vessel{ID: id, LengthM: lengthM, DraftM: 8, Category: "container", ETA: eta,
		ServiceDuration: 4 * time.Hour, Priority: prio, Status: model.VesselPending}
}

// port builds a two berth schedule: V1 on B1 from t0, V2 on B2 from t0+1h
// with one hour of waiting, V3 pending.
func port(t *testing.T) *schedule.Schedule {
	t.Helper()
	st := schedule.NewStore(feasibility.Checker{}, nil)
	_, err := st.AddBerth(model.Berth{ID: "B1", MaxLengthM: 300, MaxDraftM: 12, Categories: []string{"container"}})
	require.NoError(t, err)
	_, err = st.AddBerth(model.Berth{ID: "B2", MaxLengthM: 200, MaxDraftM: 12, Categories: []string{"container"},
		Maintenance: []model.TimeWindow{model.NewWindow(t0.Add(6*time.Hour), 2*time.Hour)}})
	require.NoError(t, err)
	for _, v := range []model.Vessel{
		vessel("V1", t0, 150, 1),
		vessel("V2", t0, 150, 2),
		vessel("V3", t0.Add(40*time.Minute), 150, 1),
	} {
		_, err = st.Submit(v)
		require.NoError(t, err)
	}
	snap := st.Snapshot()
	_, _, err = st.Apply(schedule.Update{ID: "u1", BaseVersion: snap.Version(), Assign: []model.Assignment{
		{VesselID: "V1", BerthID: "B1", Window: model.NewWindow(t0, 4*time.Hour)},
		{VesselID: "V2", BerthID: "B2", Window: model.NewWindow(t0.Add(time.Hour), 4*time.Hour)},
	}})
	require.NoError(t, err)
	return st.Snapshot()
}

func TestCompetitionLevels(t *testing.T) {
	s := port(t)

	res := Competition(s, t0.Add(10*time.Hour), 0, "")
	assert.Equal(t, LevelLow, res.Level)
	assert.Equal(t, DefaultCompetitionWindow, res.Window)
	assert.False(t, res.ShouldAccelerate)
	assert.Zero(t, res.Adjustment)

	res = Competition(s, t0.Add(45*time.Minute), time.Hour, "")
	require.Len(t, res.Competitors, 3)
	assert.Equal(t, LevelHigh, res.Level)
	assert.Equal(t, "V3", res.Competitors[0].VesselID, "closest first")
	assert.Equal(t, "B2", res.Competitors[1].BerthID)
	assert.InDelta(t, 15, res.Competitors[1].DiffMinutes, 1e-9)
	assert.True(t, res.ShouldAccelerate)
	assert.Equal(t, t0.Add(-30*time.Minute), res.RecommendedETA)
	assert.Equal(t, -75*time.Minute, res.Adjustment)

	res = Competition(s, t0.Add(45*time.Minute), time.Hour, "V3")
	assert.Equal(t, LevelMedium, res.Level)
}

func TestCompetitionNoAccelerationWhenFirst(t *testing.T) {
	s := port(t)
	res := Competition(s, t0.Add(-30*time.Minute), 75*time.Minute, "")
	require.Len(t, res.Competitors, 2)
	assert.False(t, res.ShouldAccelerate)
	assert.Equal(t, res.ETA, res.RecommendedETA)
}

func TestOccupancy(t *testing.T) {
	s := port(t)
	occ := Occupancy(s, model.NewWindow(t0, 8*time.Hour))
	require.Len(t, occ, 2)

	assert.Equal(t, "B1", occ[0].BerthID)
	assert.Equal(t, 1, occ[0].Assignments)
	assert.InDelta(t, 0.5, occ[0].Fraction, 1e-9)
	assert.InDelta(t, 0.5, occ[0].Utilisation, 1e-9)

	// 4h busy plus 2h maintenance over 8h, 6h open.
	assert.Equal(t, 2*time.Hour, occ[1].Maintenance)
	assert.InDelta(t, 0.75, occ[1].Fraction, 1e-9)
	assert.InDelta(t, 4.0/6.0, occ[1].Utilisation, 1e-9)

	assert.Nil(t, Occupancy(s, model.TimeWindow{}))
}

func TestRecommend(t *testing.T) {
	s := port(t)
	c := feasibility.Checker{SafetyBufferM: 15}
	v := vessel("V3", t0.Add(40*time.Minute), 150, 1)

	rec, err := Recommend(c, s, v, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 180.0, rec.RequiredLengthM)
	require.Len(t, rec.Candidates, 2)
	best, ok := rec.Best()
	require.True(t, ok)
	assert.Equal(t, "B1", best.BerthID, "more headroom wins")
	assert.InDelta(t, 166.7, best.Suitability, 1e-9)
	assert.Equal(t, t0.Add(4*time.Hour), best.Window.Start)
	assert.Equal(t, 3*time.Hour+20*time.Minute, best.Wait)
	// B2 is held by V2 until t0+5h, then under maintenance until t0+8h.
	assert.Equal(t, t0.Add(8*time.Hour), rec.Candidates[1].Window.Start)
}

func TestRecommendReportsRejectedBerths(t *testing.T) {
	s := port(t)
	v := vessel("BIG", t0, 250, 1)
	rec, err := Recommend(feasibility.Checker{}, s, v, time.Time{})
	require.NoError(t, err)
	require.Len(t, rec.Candidates, 2)
	assert.True(t, rec.Candidates[0].Feasible)
	assert.False(t, rec.Candidates[1].Feasible)
	assert.Equal(t, feasibility.ReasonLength, rec.Candidates[1].Reason)

	v.LengthM = 400
	rec, err = Recommend(feasibility.Checker{}, s, v, time.Time{})
	require.NoError(t, err)
	_, ok := rec.Best()
	assert.False(t, ok)

	_, err = Recommend(feasibility.Checker{}, s, model.Vessel{ID: "bad"}, time.Time{})
	assert.True(t, model.IsValidation(err))
}

func TestKPIs(t *testing.T) {
	s := port(t)
	k := KPIs(s, model.TimeWindow{})
	assert.Equal(t, 3, k.Vessels)
	assert.Equal(t, 2, k.Placed)
	assert.Equal(t, 1, k.Pending)
	assert.InDelta(t, 0.5, k.MeanWaitHours, 1e-9)
	assert.InDelta(t, 1, k.MaxWaitHours, 1e-9)
	assert.InDelta(t, 2.0/3.0, k.WeightedWaitHours, 1e-9)
	assert.InDelta(t, 2, k.Objective, 1e-9)
	assert.InDelta(t, 1, k.P90WaitHours, 1e-9)
	assert.Greater(t, k.Utilisation, 0.0)

	empty := KPIs(schedule.Empty(), model.TimeWindow{})
	assert.Zero(t, empty.Vessels)
	assert.Zero(t, empty.Utilisation)
}
