package events

import (
	"time"

	"github.com/kilianp07/berthplan/core/schedule"
)

// TransitionEvent is published for each lifecycle change applied by the store.
type TransitionEvent struct {
	schedule.Transition
	Version uint64 `json:"version"`
}

// RejectedEvent is published when a disruption event fails validation or
// cannot be committed.
type RejectedEvent struct {
	Kind string    `json:"kind"`
	Err  string    `json:"error"`
	Time time.Time `json:"time"`
}
