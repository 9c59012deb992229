package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/metrics/usage"
)

func TestUsageSinkBooksDepartures(t *testing.T) {
	store := usage.NewMemoryStore()
	sink, err := NewUsageSink(store, prometheus.NewRegistry())
	require.NoError(t, err)

	at := time.Date(2025, 6, 3, 18, 0, 0, 0, time.UTC)
	require.NoError(t, sink.RecordTransition(coremetrics.TransitionEvent{BerthID: "B1", To: "servicing", Time: at}))
	require.NoError(t, sink.RecordTransition(coremetrics.TransitionEvent{BerthID: "B1", To: "departed",
		Service: 6 * time.Hour, Wait: 2 * time.Hour, Time: at}))
	require.NoError(t, sink.RecordTransition(coremetrics.TransitionEvent{BerthID: "B1", To: "departed",
		Service: 6 * time.Hour, Time: at.Add(time.Hour)}))

	recs, err := store.Query("B1", at, at)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 2, recs[0].Calls)

	assert.InDelta(t, 0.5, testutil.ToFloat64(sink.utilisation.WithLabelValues("B1", "2025-06-03")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(sink.meanWait.WithLabelValues("B1", "2025-06-03")), 1e-9)
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.calls.WithLabelValues("B1", "2025-06-03")))
}
