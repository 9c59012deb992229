package analysis

import (
	"time"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// BerthOccupancy is the share of a window a berth is unavailable.
type BerthOccupancy struct {
	BerthID     string        `json:"berth_id"`
	Assignments int           `json:"assignments"`
	Busy        time.Duration `json:"busy"`
	Maintenance time.Duration `json:"maintenance"`
	// Fraction counts both assignments and maintenance.
	Fraction float64 `json:"fraction"`
	// Utilisation is busy time over the time the berth was open.
	Utilisation float64 `json:"utilisation"`
}

// Occupancy computes per-berth occupancy over w, berths ordered by id.
// Departed assignments count as history.
func Occupancy(s *schedule.Schedule, w model.TimeWindow) []BerthOccupancy {
	if w.Validate() != nil {
		return nil
	}
	total := w.Duration()
	out := make([]BerthOccupancy, 0)
	for _, b := range s.Berths() {
		o := BerthOccupancy{BerthID: b.ID}
		for _, a := range s.OnBerth(b.ID) {
			if iv, ok := a.Window.Intersection(w); ok {
				o.Assignments++
				o.Busy += iv.Duration()
			}
		}
		for _, m := range b.Maintenance {
			if iv, ok := m.Intersection(w); ok {
				o.Maintenance += iv.Duration()
			}
		}
		o.Fraction = clamp(float64(o.Busy+o.Maintenance) / float64(total))
		if open := total - o.Maintenance; open > 0 {
			o.Utilisation = clamp(float64(o.Busy) / float64(open))
		}
		out = append(out, o)
	}
	return out
}

func clamp(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}
