package model

import (
	"encoding/json"
	"fmt"
)

// VesselStatus tracks a vessel through its port call.
type VesselStatus int

const (
	VesselPending VesselStatus = iota
	VesselAssigned
	VesselServicing
	VesselDeparted
	VesselCancelled
)

var vesselStatusNames = map[VesselStatus]string{
	VesselPending:   "pending",
	VesselAssigned:  "assigned",
	VesselServicing: "servicing",
	VesselDeparted:  "departed",
	VesselCancelled: "cancelled",
}

// String returns the lowercase name of the status.
func (s VesselStatus) String() string {
	if n, ok := vesselStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

// Active reports whether a vessel in this status holds or may hold a berth.
func (s VesselStatus) Active() bool {
	return s == VesselAssigned || s == VesselServicing
}

// Movable reports whether the solver may still change the vessel's assignment.
func (s VesselStatus) Movable() bool {
	return s == VesselPending || s == VesselAssigned
}

// ParseVesselStatus converts a lowercase name into a VesselStatus.
func ParseVesselStatus(s string) (VesselStatus, error) {
	for k, v := range vesselStatusNames {
		if v == s {
			return k, nil
		}
	}
	return 0, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown vessel status %q", s)}
}

func (s VesselStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *VesselStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseVesselStatus(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// BerthStatus is the operational state of a berth.
type BerthStatus int

const (
	BerthAvailable BerthStatus = iota
	BerthOccupied
	BerthClosed
)

var berthStatusNames = map[BerthStatus]string{
	BerthAvailable: "available",
	BerthOccupied:  "occupied",
	BerthClosed:    "closed",
}

func (s BerthStatus) String() string {
	if n, ok := berthStatusNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseBerthStatus converts a lowercase name into a BerthStatus.
func ParseBerthStatus(s string) (BerthStatus, error) {
	for k, v := range berthStatusNames {
		if v == s {
			return k, nil
		}
	}
	return 0, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown berth status %q", s)}
}

func (s BerthStatus) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *BerthStatus) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseBerthStatus(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}
