package reschedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/model"
)

func TestEventEnvelopeRoundTrip(t *testing.T) {
	closed := BerthClosed{BerthID: "B1", Window: model.NewWindow(t0.Add(time.Hour), 2*time.Hour)}
	data, err := EncodeEvent(closed)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"berth_closed"`)

	ev, err := DecodeEvent(data)
	require.NoError(t, err)
	got, ok := ev.(BerthClosed)
	require.True(t, ok)
	assert.Equal(t, closed.BerthID, got.BerthID)
	assert.True(t, closed.Window.Equal(got.Window))
}

func TestDecodeEventFlatPayloads(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"type":"vessel_delayed","vessel_id":"V1","new_arrival":"2025-03-01T09:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, VesselDelayed{VesselID: "V1", NewArrival: t0.Add(3 * time.Hour)}, ev)

	ev, err = DecodeEvent([]byte(`{"type":"duration_revised","vessel_id":"V1","hours":6}`))
	require.NoError(t, err)
	assert.Equal(t, 6*time.Hour, ev.(DurationRevised).Effective())

	ev, err = DecodeEvent([]byte(`{"type":"new_arrival","vessel":{"length_m":120,"draft_m":7,"category":"bulk","eta":"2025-03-01T06:00:00Z"}}`))
	require.NoError(t, err)
	assert.Equal(t, KindNewArrival, ev.Kind())
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"tsunami"}`))
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, err = DecodeEvent([]byte(`{"type":"vessel_cancelled"}`))
	assert.True(t, model.IsValidation(err))

	_, err = DecodeEvent([]byte(`{"type":"berth_closed","berth_id":"B1","window":{"start":"2025-03-01T09:00:00Z","end":"2025-03-01T08:00:00Z"}}`))
	assert.True(t, model.IsValidation(err))

	_, err = DecodeEvent([]byte(`not json`))
	assert.Error(t, err)
}
