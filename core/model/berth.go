package model

import (
	"fmt"
	"sort"
	"strings"
)

// Berth is a quay position able to serve one vessel at a time.
type Berth struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	MaxLengthM  float64      `json:"max_length_m"`
	MaxDraftM   float64      `json:"max_draft_m"`
	Categories  []string     `json:"categories"`
	Maintenance []TimeWindow `json:"maintenance,omitempty"`
	Status      BerthStatus  `json:"status"`
}

// Validate checks berth limits and maintenance windows.
func (b Berth) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if b.MaxLengthM <= 0 {
		return &ValidationError{Field: "max_length_m", Reason: fmt.Sprintf("must be positive, got %g", b.MaxLengthM)}
	}
	if b.MaxDraftM <= 0 {
		return &ValidationError{Field: "max_draft_m", Reason: fmt.Sprintf("must be positive, got %g", b.MaxDraftM)}
	}
	if len(b.Categories) == 0 {
		return &ValidationError{Field: "categories", Reason: "at least one category is required"}
	}
	for i, w := range b.Maintenance {
		if err := w.Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("maintenance[%d]", i), Reason: err.(*ValidationError).Reason}
		}
	}
	return nil
}

// Accepts reports whether the berth handles the given cargo category.
func (b Berth) Accepts(category string) bool {
	for _, c := range b.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// Normalized returns a copy with lowercase categories and maintenance
// windows sorted by start.
func (b Berth) Normalized() Berth {
	out := b.Clone()
	for i, c := range out.Categories {
		out.Categories[i] = strings.ToLower(strings.TrimSpace(c))
	}
	sort.Strings(out.Categories)
	sort.Slice(out.Maintenance, func(i, j int) bool {
		return out.Maintenance[i].Start.Before(out.Maintenance[j].Start)
	})
	return out
}

// Clone returns a deep copy of the berth.
func (b Berth) Clone() Berth {
	out := b
	out.Categories = append([]string(nil), b.Categories...)
	out.Maintenance = append([]TimeWindow(nil), b.Maintenance...)
	return out
}

// Assignment is the occupancy of a berth by a vessel over a window.
type Assignment struct {
	VesselID string     `json:"vessel_id"`
	BerthID  string     `json:"berth_id"`
	Window   TimeWindow `json:"window"`
}

// Equal compares ids and window bounds.
func (a Assignment) Equal(o Assignment) bool {
	return a.VesselID == o.VesselID && a.BerthID == o.BerthID && a.Window.Equal(o.Window)
}

func (a Assignment) String() string {
	return fmt.Sprintf("%s@%s%s", a.VesselID, a.BerthID, a.Window)
}
