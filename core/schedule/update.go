package schedule

import (
	"fmt"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
)

// Unplaced records a vessel the solver could not place.
type Unplaced struct {
	VesselID string             `json:"vessel_id"`
	Reason   feasibility.Reason `json:"reason"`
	Detail   string             `json:"detail"`
}

// Update is a proposed set of changes computed against BaseVersion. It is
// applied atomically by Store.Apply in the order: vessel and berth upserts,
// cancellations, releases, assignments.
type Update struct {
	ID          string             `json:"id"`
	BaseVersion uint64             `json:"base_version"`
	Trigger     string             `json:"trigger"`
	Vessels     []model.Vessel     `json:"vessels,omitempty"`
	Berths      []model.Berth      `json:"berths,omitempty"`
	Cancel      []string           `json:"cancel,omitempty"`
	Release     []string           `json:"release,omitempty"`
	Assign      []model.Assignment `json:"assign,omitempty"`
	Unplaced    []Unplaced         `json:"unplaced,omitempty"`
	Escalated   bool               `json:"escalated"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return len(u.Vessels) == 0 && len(u.Berths) == 0 && len(u.Cancel) == 0 &&
		len(u.Release) == 0 && len(u.Assign) == 0
}

// stage applies the update to d without verifying invariants.
func (u Update) stage(d *Draft) error {
	for _, v := range u.Vessels {
		if err := v.Validate(); err != nil {
			return err
		}
		if cur, ok := d.Vessel(v.ID); ok && cur.Status != v.Status {
			return &InvariantViolation{Invariant: InvariantStatus, VesselID: v.ID,
				Detail: fmt.Sprintf("upsert changes status %s to %s", cur.Status, v.Status)}
		}
		d.PutVessel(v)
	}
	for _, b := range u.Berths {
		if err := b.Validate(); err != nil {
			return err
		}
		d.PutBerth(b)
	}
	for _, id := range u.Cancel {
		if err := d.Cancel(id); err != nil {
			return err
		}
	}
	for _, id := range u.Release {
		if err := d.Release(id); err != nil {
			return err
		}
	}
	for _, a := range u.Assign {
		if err := d.Assign(a); err != nil {
			return err
		}
	}
	return nil
}

// Preview stages u on top of s and returns the resulting schedule without
// verifying it. The result keeps the version of s.
func (s *Schedule) Preview(u Update) (*Schedule, error) {
	d := s.Draft()
	if err := u.stage(d); err != nil {
		return nil, err
	}
	return d.Freeze(), nil
}
