package reschedule

import (
	"strings"
	"time"

	"github.com/kilianp07/berthplan/core/model"
)

// Kind names a disruption event on the wire and in update triggers.
type Kind string

const (
	KindVesselDelayed   Kind = "vessel_delayed"
	KindBerthClosed     Kind = "berth_closed"
	KindVesselCancelled Kind = "vessel_cancelled"
	KindNewArrival      Kind = "new_arrival"
	KindDurationRevised Kind = "duration_revised"
)

// Event is a disruption reported by a collaborator.
type Event interface {
	Kind() Kind
	Validate() error
}

// VesselDelayed moves a vessel's arrival estimate.
type VesselDelayed struct {
	VesselID   string    `json:"vessel_id"`
	NewArrival time.Time `json:"new_arrival"`
}

func (VesselDelayed) Kind() Kind { return KindVesselDelayed }

func (e VesselDelayed) Validate() error {
	if strings.TrimSpace(e.VesselID) == "" {
		return &model.ValidationError{Field: "vessel_id", Reason: "required"}
	}
	if e.NewArrival.IsZero() {
		return &model.ValidationError{Field: "new_arrival", Reason: "required"}
	}
	return nil
}

// BerthClosed adds an unavailability window to a berth.
type BerthClosed struct {
	BerthID string           `json:"berth_id"`
	Window  model.TimeWindow `json:"window"`
}

func (BerthClosed) Kind() Kind { return KindBerthClosed }

func (e BerthClosed) Validate() error {
	if strings.TrimSpace(e.BerthID) == "" {
		return &model.ValidationError{Field: "berth_id", Reason: "required"}
	}
	return e.Window.Validate()
}

// VesselCancelled withdraws a vessel that has not started service.
type VesselCancelled struct {
	VesselID string `json:"vessel_id"`
}

func (VesselCancelled) Kind() Kind { return KindVesselCancelled }

func (e VesselCancelled) Validate() error {
	if strings.TrimSpace(e.VesselID) == "" {
		return &model.ValidationError{Field: "vessel_id", Reason: "required"}
	}
	return nil
}

// NewArrival registers a vessel and places it in the same pass.
type NewArrival struct {
	Vessel model.VesselInput `json:"vessel"`
}

func (NewArrival) Kind() Kind { return KindNewArrival }

// Validate checks the vessel data. An empty id is accepted here and must be
// filled in before the event is handled.
func (e NewArrival) Validate() error {
	v := e.Vessel.ToVessel()
	if v.ID == "" {
		v.ID = "unassigned"
	}
	return v.Validate()
}

// DurationRevised replaces a vessel's expected time alongside.
type DurationRevised struct {
	VesselID string        `json:"vessel_id"`
	Duration time.Duration `json:"duration,omitempty"`
	// Hours is used when Duration is zero.
	Hours float64 `json:"hours,omitempty"`
}

func (DurationRevised) Kind() Kind { return KindDurationRevised }

// Effective returns the revised duration.
func (e DurationRevised) Effective() time.Duration {
	if e.Duration != 0 {
		return e.Duration
	}
	return time.Duration(e.Hours * float64(time.Hour))
}

func (e DurationRevised) Validate() error {
	if strings.TrimSpace(e.VesselID) == "" {
		return &model.ValidationError{Field: "vessel_id", Reason: "required"}
	}
	if e.Effective() <= 0 {
		return &model.ValidationError{Field: "duration", Reason: "must be positive"}
	}
	return nil
}
