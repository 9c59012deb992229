// Package events defines the scheduling events emitted on the event bus.
//
// Available event types:
//   - UpdateEvent: a committed schedule update
//   - TransitionEvent: a vessel lifecycle change
//   - RejectedEvent: a disruption event that could not be absorbed
package events
