package kpi

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/metrics/usage"
)

func TestSQLiteStoreAccumulatesPerDay(t *testing.T) {
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	day := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.Add(usage.Record{BerthID: "B1", Date: day.Add(3 * time.Hour), ServiceHours: 6, WaitHours: 1, Calls: 1}))
	require.NoError(t, st.Add(usage.Record{BerthID: "B1", Date: day.Add(20 * time.Hour), ServiceHours: 6, WaitHours: 3, Calls: 1}))
	require.NoError(t, st.Add(usage.Record{BerthID: "B1", Date: day.Add(30 * time.Hour), ServiceHours: 2, Calls: 1}))
	require.NoError(t, st.Add(usage.Record{BerthID: "B2", Date: day, ServiceHours: 4, Calls: 1}))

	recs, err := st.Query("B1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, day, recs[0].Date)
	assert.Equal(t, 12.0, recs[0].ServiceHours)
	assert.Equal(t, 2, recs[0].Calls)
	assert.InDelta(t, 0.5, recs[0].Utilisation(), 1e-9)
	assert.InDelta(t, 2, recs[0].MeanWait(), 1e-9)
	assert.Equal(t, 1, recs[1].Calls)

	recs, err = st.Query("B3", day, day)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
