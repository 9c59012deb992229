package model

import (
	"fmt"
	"strings"
	"time"
)

// DefaultServiceDuration is used when a registration omits the expected
// time alongside.
const DefaultServiceDuration = 12 * time.Hour

// Vessel is a ship calling at the port.
type Vessel struct {
	ID              string        `json:"id"`
	Name            string        `json:"name,omitempty"`
	LengthM         float64       `json:"length_m"`
	DraftM          float64       `json:"draft_m"`
	Category        string        `json:"category"`
	ETA             time.Time     `json:"eta"`
	ServiceDuration time.Duration `json:"service_duration"`
	Priority        float64       `json:"priority"`
	Status          VesselStatus  `json:"status"`
}

// Validate checks that the vessel dimensions and estimates are usable.
func (v Vessel) Validate() error {
	switch {
	case strings.TrimSpace(v.ID) == "":
		return &ValidationError{Field: "id", Reason: "required"}
	case v.LengthM <= 0:
		return &ValidationError{Field: "length_m", Reason: fmt.Sprintf("must be positive, got %g", v.LengthM)}
	case v.DraftM <= 0:
		return &ValidationError{Field: "draft_m", Reason: fmt.Sprintf("must be positive, got %g", v.DraftM)}
	case strings.TrimSpace(v.Category) == "":
		return &ValidationError{Field: "category", Reason: "required"}
	case v.ETA.IsZero():
		return &ValidationError{Field: "eta", Reason: "required"}
	case v.ServiceDuration <= 0:
		return &ValidationError{Field: "service_duration", Reason: fmt.Sprintf("must be positive, got %s", v.ServiceDuration)}
	case v.Priority < 0:
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("must not be negative, got %g", v.Priority)}
	}
	return nil
}

// RequestedWindow is the window the vessel would occupy if served on arrival.
func (v Vessel) RequestedWindow() TimeWindow { return NewWindow(v.ETA, v.ServiceDuration) }

// VesselInput is the registration payload accepted from collaborators.
// Zero duration and priority are replaced by defaults.
type VesselInput struct {
	ID              string        `json:"id,omitempty"`
	Name            string        `json:"name,omitempty"`
	LengthM         float64       `json:"length_m"`
	DraftM          float64       `json:"draft_m"`
	Category        string        `json:"category"`
	ETA             time.Time     `json:"eta"`
	ServiceDuration time.Duration `json:"service_duration,omitempty"`
	// ServiceHours is used when ServiceDuration is zero.
	ServiceHours float64 `json:"service_hours,omitempty" yaml:"service_hours"`
	Priority     float64 `json:"priority,omitempty"`
}

// ToVessel builds a Pending vessel from the input. The id must be set by the
// caller beforehand when the input does not carry one.
func (in VesselInput) ToVessel() Vessel {
	v := Vessel{
		ID:              in.ID,
		Name:            in.Name,
		LengthM:         in.LengthM,
		DraftM:          in.DraftM,
		Category:        strings.ToLower(strings.TrimSpace(in.Category)),
		ETA:             in.ETA,
		ServiceDuration: in.ServiceDuration,
		Priority:        in.Priority,
		Status:          VesselPending,
	}
	if v.ServiceDuration == 0 && in.ServiceHours != 0 {
		v.ServiceDuration = time.Duration(in.ServiceHours * float64(time.Hour))
	}
	if v.ServiceDuration == 0 {
		v.ServiceDuration = DefaultServiceDuration
	}
	if v.Priority == 0 {
		v.Priority = 1
	}
	return v
}
