package model

import (
	"fmt"
	"time"
)

// TimeWindow is a half-open interval [Start, End) on the shared timeline.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow returns the window starting at start and lasting d.
func NewWindow(start time.Time, d time.Duration) TimeWindow {
	return TimeWindow{Start: start, End: start.Add(d)}
}

// Validate checks that Start < End.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return &ValidationError{Field: "window", Reason: "start and end are required"}
	}
	if !w.Start.Before(w.End) {
		return &ValidationError{Field: "window", Reason: fmt.Sprintf("start %s must be before end %s",
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))}
	}
	return nil
}

// Duration returns End - Start.
func (w TimeWindow) Duration() time.Duration { return w.End.Sub(w.Start) }

// Overlaps reports whether the two half-open windows share any instant.
func (w TimeWindow) Overlaps(o TimeWindow) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

// Contains reports whether t lies in [Start, End).
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Intersection returns the common part of both windows and false when they
// do not overlap.
func (w TimeWindow) Intersection(o TimeWindow) (TimeWindow, bool) {
	if !w.Overlaps(o) {
		return TimeWindow{}, false
	}
	res := w
	if o.Start.After(res.Start) {
		res.Start = o.Start
	}
	if o.End.Before(res.End) {
		res.End = o.End
	}
	return res, true
}

// Equal compares both bounds with time.Time.Equal semantics.
func (w TimeWindow) Equal(o TimeWindow) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}
