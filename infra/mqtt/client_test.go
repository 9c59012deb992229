package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/reschedule"
)

func TestNotifySchedulePayload(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", UpdatesTopic: "port/updates"})
	require.NoError(t, err)

	sum := engine.Summary{UpdateID: "u7", Trigger: "berth_closed", Applied: true, Version: 12, StillPending: []string{"V3"}}
	require.NoError(t, cli.NotifySchedule(context.Background(), sum))
	require.Len(t, mc.payloads, 1)
	assert.Equal(t, "port/updates", mc.published[0].topic)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(mc.payloads[0], &msg))
	assert.NotEmpty(t, msg["message_id"])
	assert.Equal(t, "u7", msg["update_id"])
	assert.Equal(t, "berth_closed", msg["trigger"])
	assert.EqualValues(t, 12, msg["version"])
	assert.Equal(t, []any{"V3"}, msg["still_pending"])
}

func TestNotifyScheduleStopsOnCancel(t *testing.T) {
	fail := assert.AnError
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", BackoffMS: 10000})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = cli.NotifySchedule(ctx, engine.Summary{UpdateID: "u1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mc.published, 1)
}

func TestOnEventForwardsDecodedEvents(t *testing.T) {
	mc := &mockClient{}
	withMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"})
	require.NoError(t, err)

	cli.onEvent(nil, mockMessage{topic: "berth/events/vessel_delayed",
		p: []byte(`{"vessel_id":"V1","new_arrival":"2025-03-01T10:00:00Z"}`)})
	cli.onEvent(nil, mockMessage{topic: "berth/events/any",
		p: []byte(`{"type":"vessel_cancelled","vessel_id":"V2"}`)})
	cli.onEvent(nil, mockMessage{topic: "berth/events/bogus", p: []byte(`{"x":1}`)})
	cli.onEvent(nil, mockMessage{topic: "berth/events/vessel_cancelled", p: []byte(`not json`)})

	var got []reschedule.Event
	timeout := time.After(time.Second)
	for len(got) < 2 {
		select {
		case ev := <-cli.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d events", len(got))
		}
	}
	delayed, ok := got[0].(reschedule.VesselDelayed)
	require.True(t, ok)
	assert.Equal(t, "V1", delayed.VesselID)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), delayed.NewArrival.UTC())
	assert.Equal(t, reschedule.VesselCancelled{VesselID: "V2"}, got[1])
	assert.Len(t, cli.Events(), 0, "invalid messages are dropped")

	cli.Disconnect()
	_, open := <-cli.Events()
	assert.False(t, open)
	// Messages after disconnect are ignored.
	cli.onEvent(nil, mockMessage{topic: "berth/events/vessel_cancelled", p: []byte(`{"vessel_id":"V3"}`)})
}

func TestDecodeMessageKeepsExplicitType(t *testing.T) {
	ev, err := decodeMessage("berth/events/vessel_delayed", []byte(`{"type":"berth_closed","berth_id":"B1",
		"window":{"start":"2025-03-01T10:00:00Z","end":"2025-03-01T12:00:00Z"}}`))
	require.NoError(t, err)
	closed, ok := ev.(reschedule.BerthClosed)
	require.True(t, ok)
	assert.Equal(t, model.NewWindow(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), 2*time.Hour).Duration(), closed.Window.Duration())
}
