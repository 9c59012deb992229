package reschedule

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned when an envelope names no known event type.
var ErrUnknownEvent = errors.New("unknown event type")

var kinds = map[Kind]func() Event{
	KindVesselDelayed:   func() Event { return &VesselDelayed{} },
	KindBerthClosed:     func() Event { return &BerthClosed{} },
	KindVesselCancelled: func() Event { return &VesselCancelled{} },
	KindNewArrival:      func() Event { return &NewArrival{} },
	KindDurationRevised: func() Event { return &DurationRevised{} },
}

// DecodeEvent parses a flat JSON envelope such as
// {"type":"berth_closed","berth_id":"B1","window":{...}}. The event is
// validated before it is returned.
func DecodeEvent(data []byte) (Event, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	mk, ok := kinds[head.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownEvent, head.Type)
	}
	ptr := mk()
	if err := json.Unmarshal(data, ptr); err != nil {
		return nil, fmt.Errorf("decode %s: %w", head.Type, err)
	}
	ev := deref(ptr)
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// EncodeEvent renders ev as a flat JSON envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	kind, err := json.Marshal(ev.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind
	return json.Marshal(fields)
}

func deref(ev Event) Event {
	switch e := ev.(type) {
	case *VesselDelayed:
		return *e
	case *BerthClosed:
		return *e
	case *VesselCancelled:
		return *e
	case *NewArrival:
		return *e
	case *DurationRevised:
		return *e
	}
	return ev
}
