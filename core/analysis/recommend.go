package analysis

import (
	"errors"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// Candidate is the evaluation of one berth for a vessel.
type Candidate struct {
	BerthID  string           `json:"berth_id"`
	Name     string           `json:"name,omitempty"`
	Feasible bool             `json:"feasible"`
	Window   model.TimeWindow `json:"window,omitempty"`
	Wait     time.Duration    `json:"wait"`
	// Suitability is the berth length as a percentage of the required
	// length; higher leaves more headroom.
	Suitability float64            `json:"suitability"`
	Reason      feasibility.Reason `json:"reason,omitempty"`
	Detail      string             `json:"detail,omitempty"`
}

// Recommendation ranks every berth for a vessel.
type Recommendation struct {
	VesselID        string      `json:"vessel_id"`
	RequiredLengthM float64     `json:"required_length_m"`
	Candidates      []Candidate `json:"candidates"`
}

// Best returns the top feasible candidate.
func (r Recommendation) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 || !r.Candidates[0].Feasible {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// Recommend evaluates every berth of s for v around the committed
// assignments, starting no earlier than max(v.ETA, notBefore). Feasible
// berths come first, by suitability then earliest start; rejected berths
// follow in id order with their reason.
func Recommend(c feasibility.Checker, s *schedule.Schedule, v model.Vessel, notBefore time.Time) (Recommendation, error) {
	if err := v.Validate(); err != nil {
		return Recommendation{}, err
	}
	need := c.RequiredLength(v)
	rec := Recommendation{VesselID: v.ID, RequiredLengthM: need}
	earliest := v.ETA
	if notBefore.After(earliest) {
		earliest = notBefore
	}
	self := func(id string) bool { return id == v.ID }
	for _, b := range s.Berths() {
		cand := Candidate{BerthID: b.ID, Name: b.Name, Suitability: round1(b.MaxLengthM / need * 100)}
		w, err := c.Feasible(v, b, earliest, s.Occupied(b.ID, self))
		if err != nil {
			var inf *feasibility.InfeasibleError
			if !errors.As(err, &inf) {
				return Recommendation{}, err
			}
			cand.Reason, cand.Detail = inf.Reason, inf.Detail
		} else {
			cand.Feasible = true
			cand.Window = w
			cand.Wait = w.Start.Sub(v.ETA)
		}
		rec.Candidates = append(rec.Candidates, cand)
	}
	sort.SliceStable(rec.Candidates, func(i, j int) bool {
		a, b := rec.Candidates[i], rec.Candidates[j]
		if a.Feasible != b.Feasible {
			return a.Feasible
		}
		if !a.Feasible {
			return a.BerthID < b.BerthID
		}
		if a.Suitability != b.Suitability {
			return a.Suitability > b.Suitability
		}
		if !a.Window.Start.Equal(b.Window.Start) {
			return a.Window.Start.Before(b.Window.Start)
		}
		return a.BerthID < b.BerthID
	})
	return rec, nil
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
