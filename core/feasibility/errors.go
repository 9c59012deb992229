package feasibility

import "fmt"

// Reason identifies why a vessel cannot be placed.
type Reason string

const (
	ReasonLength       Reason = "length"
	ReasonDraft        Reason = "draft"
	ReasonCategory     Reason = "category"
	ReasonClosed       Reason = "closed"
	ReasonHorizon      Reason = "horizon"
	ReasonNoBerths     Reason = "no_berths"
	ReasonIncompatible Reason = "incompatible"
)

// Compatibility reports whether the reason is a static vessel/berth mismatch
// rather than a lack of time.
func (r Reason) Compatibility() bool {
	switch r {
	case ReasonLength, ReasonDraft, ReasonCategory, ReasonClosed, ReasonIncompatible:
		return true
	}
	return false
}

// InfeasibleError is returned when no window exists for a vessel.
type InfeasibleError struct {
	VesselID string
	BerthID  string
	Reason   Reason
	Detail   string
}

func (e *InfeasibleError) Error() string {
	if e.BerthID == "" {
		return fmt.Sprintf("vessel %s infeasible (%s): %s", e.VesselID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("vessel %s infeasible at berth %s (%s): %s", e.VesselID, e.BerthID, e.Reason, e.Detail)
}
