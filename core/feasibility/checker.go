package feasibility

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/model"
)

// DefaultHorizon bounds how far past the earliest start a window may end.
const DefaultHorizon = 14 * 24 * time.Hour

// Checker evaluates vessel/berth compatibility and free windows.
type Checker struct {
	// Horizon is the planning horizon measured from the earliest start.
	// Zero uses DefaultHorizon.
	Horizon time.Duration
	// SafetyBufferM is the clearance kept at each end of the vessel.
	SafetyBufferM float64
	// UnderKeelM is the clearance required below the keel.
	UnderKeelM float64
}

// Config holds the checker settings loaded from configuration.
type Config struct {
	HorizonHours  float64 `json:"horizon_hours"`
	SafetyBufferM float64 `json:"safety_buffer_m"`
	UnderKeelM    float64 `json:"under_keel_m"`
}

// New builds a Checker from cfg.
func New(cfg Config) Checker {
	return Checker{
		Horizon:       time.Duration(cfg.HorizonHours * float64(time.Hour)),
		SafetyBufferM: cfg.SafetyBufferM,
		UnderKeelM:    cfg.UnderKeelM,
	}
}

func (c Checker) horizon() time.Duration {
	if c.Horizon <= 0 {
		return DefaultHorizon
	}
	return c.Horizon
}

// RequiredLength is the quay length the vessel needs including buffers.
func (c Checker) RequiredLength(v model.Vessel) float64 {
	return v.LengthM + 2*c.SafetyBufferM
}

// Compatible runs the static checks in order and returns the first failure.
func (c Checker) Compatible(v model.Vessel, b model.Berth) error {
	if need := c.RequiredLength(v); b.MaxLengthM < need {
		return &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonLength,
			Detail: fmt.Sprintf("berth length %.0fm < required %.0fm", b.MaxLengthM, need)}
	}
	if need := v.DraftM + c.UnderKeelM; b.MaxDraftM < need {
		return &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonDraft,
			Detail: fmt.Sprintf("berth depth %.1fm < required %.1fm", b.MaxDraftM, need)}
	}
	if !b.Accepts(v.Category) {
		return &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonCategory,
			Detail: fmt.Sprintf("category %q not handled", v.Category)}
	}
	if b.Status == model.BerthClosed {
		return &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonClosed, Detail: "berth closed"}
	}
	return nil
}

// Feasible returns the earliest window of v.ServiceDuration at berth b that
// starts at or after earliestStart and intersects neither occupied nor the
// berth maintenance windows.
func (c Checker) Feasible(v model.Vessel, b model.Berth, earliestStart time.Time, occupied []model.TimeWindow) (model.TimeWindow, error) {
	if err := c.Compatible(v, b); err != nil {
		return model.TimeWindow{}, err
	}
	busy := make([]model.TimeWindow, 0, len(occupied)+len(b.Maintenance))
	busy = append(busy, occupied...)
	busy = append(busy, b.Maintenance...)
	start, ok := FirstFit(busy, earliestStart, v.ServiceDuration, earliestStart.Add(c.horizon()))
	if !ok {
		return model.TimeWindow{}, &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonHorizon,
			Detail: fmt.Sprintf("no %s slot before %s", v.ServiceDuration, earliestStart.Add(c.horizon()).Format(time.RFC3339))}
	}
	return model.NewWindow(start, v.ServiceDuration), nil
}

// Fits reports whether w is compatible with the berth and clear of the
// maintenance windows. Overlap with other assignments is not checked.
func (c Checker) Fits(v model.Vessel, b model.Berth, w model.TimeWindow) error {
	if err := c.Compatible(v, b); err != nil {
		return err
	}
	for _, m := range b.Maintenance {
		if m.Overlaps(w) {
			return &InfeasibleError{VesselID: v.ID, BerthID: b.ID, Reason: ReasonClosed,
				Detail: fmt.Sprintf("window %s intersects maintenance %s", w, m)}
		}
	}
	return nil
}

// FirstFit scans busy intervals sorted by start and returns the earliest
// start >= from such that [start, start+d) is free and ends no later than
// limit. The input slice is not modified.
func FirstFit(busy []model.TimeWindow, from time.Time, d time.Duration, limit time.Time) (time.Time, bool) {
	sorted := append([]model.TimeWindow(nil), busy...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	cand := from
	for _, w := range sorted {
		if !w.End.After(cand) {
			continue
		}
		if !cand.Add(d).After(w.Start) {
			break
		}
		cand = w.End
	}
	if cand.Add(d).After(limit) {
		return time.Time{}, false
	}
	return cand, true
}
