package analysis

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// KPI aggregates schedule quality indicators.
type KPI struct {
	Vessels   int `json:"vessels"`
	Placed    int `json:"placed"`
	Pending   int `json:"pending"`
	Servicing int `json:"servicing"`
	Departed  int `json:"departed"`

	MeanWaitHours     float64 `json:"mean_wait_hours"`
	MaxWaitHours      float64 `json:"max_wait_hours"`
	P90WaitHours      float64 `json:"p90_wait_hours"`
	WeightedWaitHours float64 `json:"weighted_wait_hours"`
	// Objective is the sum of priority-weighted waiting hours.
	Objective float64 `json:"objective"`

	// Utilisation is the mean berth utilisation over the window.
	Utilisation float64 `json:"utilisation"`
}

// KPIs computes indicators over every placed vessel of s. Utilisation is
// measured over w; when w is not a valid window the span of the
// assignments is used.
func KPIs(s *schedule.Schedule, w model.TimeWindow) KPI {
	var k KPI
	var waits, weights []float64
	for _, v := range s.Vessels() {
		if v.Status == model.VesselCancelled {
			continue
		}
		k.Vessels++
		switch v.Status {
		case model.VesselPending:
			k.Pending++
			continue
		case model.VesselServicing:
			k.Servicing++
		case model.VesselDeparted:
			k.Departed++
		}
		a, ok := s.AssignmentOf(v.ID)
		if !ok {
			continue
		}
		k.Placed++
		wait := a.Window.Start.Sub(v.ETA).Hours()
		if wait < 0 {
			wait = 0
		}
		waits = append(waits, wait)
		weights = append(weights, v.Priority)
	}
	if len(waits) > 0 {
		k.MeanWaitHours = stat.Mean(waits, nil)
		if floats.Sum(weights) > 0 {
			k.WeightedWaitHours = stat.Mean(waits, weights)
		}
		k.MaxWaitHours = floats.Max(waits)
		k.Objective = floats.Dot(waits, weights)
		sorted := append([]float64(nil), waits...)
		sort.Float64s(sorted)
		k.P90WaitHours = stat.Quantile(0.9, stat.Empirical, sorted, nil)
	}

	if w.Validate() != nil {
		w = span(s.Assignments())
	}
	if occ := Occupancy(s, w); len(occ) > 0 {
		util := make([]float64, len(occ))
		for i, o := range occ {
			util[i] = o.Utilisation
		}
		k.Utilisation = stat.Mean(util, nil)
	}
	return k
}

func span(as []model.Assignment) model.TimeWindow {
	var w model.TimeWindow
	for i, a := range as {
		if i == 0 || a.Window.Start.Before(w.Start) {
			w.Start = a.Window.Start
		}
		if i == 0 || a.Window.End.After(w.End) {
			w.End = a.Window.End
		}
	}
	return w
}
