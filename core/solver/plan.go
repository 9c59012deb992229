package solver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

// plan is the mutable working state of one solve.
type plan struct {
	checker   feasibility.Checker
	scorer    Scorer
	notBefore time.Time
	berths    []model.Berth
	berthByID map[string]model.Berth
	fixed     map[string][]model.TimeWindow
	vessels   map[string]model.Vessel
	ids       []string
	placed    map[string]model.Assignment
}

func newPlan(c feasibility.Checker, sc Scorer, pending []model.Vessel, snap *schedule.Schedule, notBefore time.Time) *plan {
	p := &plan{
		checker:   c,
		scorer:    sc,
		notBefore: notBefore,
		berths:    snap.Berths(),
		berthByID: make(map[string]model.Berth),
		fixed:     make(map[string][]model.TimeWindow),
		vessels:   make(map[string]model.Vessel, len(pending)),
		placed:    make(map[string]model.Assignment, len(pending)),
	}
	for _, v := range pending {
		p.vessels[v.ID] = v
		p.ids = append(p.ids, v.ID)
	}
	sort.Strings(p.ids)
	moving := func(id string) bool { _, ok := p.vessels[id]; return ok }
	for _, b := range p.berths {
		p.berthByID[b.ID] = b
		p.fixed[b.ID] = snap.Occupied(b.ID, moving)
	}
	return p
}

// constructionOrder sorts by rank descending, then ETA, then ID.
func (p *plan) constructionOrder() []model.Vessel {
	out := make([]model.Vessel, 0, len(p.ids))
	for _, id := range p.ids {
		out = append(out, p.vessels[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := p.scorer.Rank(out[i]), p.scorer.Rank(out[j])
		if ri != rj {
			return ri > rj
		}
		if !out[i].ETA.Equal(out[j].ETA) {
			return out[i].ETA.Before(out[j].ETA)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (p *plan) earliest(v model.Vessel) time.Time {
	if v.ETA.Before(p.notBefore) {
		return p.notBefore
	}
	return v.ETA
}

// occupied returns fixed and placed windows on a berth, excluding the
// placements of the skipped vessels.
func (p *plan) occupied(berthID string, skip ...string) []model.TimeWindow {
	out := append([]model.TimeWindow(nil), p.fixed[berthID]...)
	for id, a := range p.placed {
		if a.BerthID != berthID || contains(skip, id) {
			continue
		}
		out = append(out, a.Window)
	}
	return out
}

// placeOn returns the earliest feasible assignment of v on berth.
func (p *plan) placeOn(v model.Vessel, berthID string) (model.Assignment, float64, error) {
	b := p.berthByID[berthID]
	w, err := p.checker.Feasible(v, b, p.earliest(v), p.occupied(berthID, v.ID))
	if err != nil {
		return model.Assignment{}, 0, err
	}
	return model.Assignment{VesselID: v.ID, BerthID: berthID, Window: w}, p.scorer.Cost(v, b, w), nil
}

// best evaluates every berth in ID order and returns the cheapest
// placement. Ties prefer the earlier start, then the lower berth ID.
func (p *plan) best(v model.Vessel) (model.Assignment, float64, error) {
	if len(p.berths) == 0 {
		return model.Assignment{}, 0, &feasibility.InfeasibleError{VesselID: v.ID, Reason: feasibility.ReasonNoBerths, Detail: "no berths registered"}
	}
	var (
		found    bool
		bestA    model.Assignment
		bestCost float64
		failures []*feasibility.InfeasibleError
	)
	for _, b := range p.berths {
		a, c, err := p.placeOn(v, b.ID)
		if err != nil {
			var ie *feasibility.InfeasibleError
			if errors.As(err, &ie) {
				failures = append(failures, ie)
			}
			continue
		}
		if !found || c < bestCost-epsilon || (c <= bestCost+epsilon && a.Window.Start.Before(bestA.Window.Start)) {
			found, bestA, bestCost = true, a, c
		}
	}
	if found {
		return bestA, bestCost, nil
	}
	return model.Assignment{}, 0, aggregate(v.ID, failures)
}

// aggregate folds per-berth failures into one reason. A horizon failure on
// any compatible berth wins; otherwise a reason shared by every berth is
// reported as is and a mixture becomes incompatible.
func aggregate(vesselID string, failures []*feasibility.InfeasibleError) error {
	var details []string
	reason := feasibility.Reason("")
	mixed := false
	for _, f := range failures {
		details = append(details, fmt.Sprintf("%s: %s", f.BerthID, f.Detail))
		if f.Reason == feasibility.ReasonHorizon {
			return &feasibility.InfeasibleError{VesselID: vesselID, Reason: feasibility.ReasonHorizon,
				Detail: "no free window within the planning horizon at any compatible berth"}
		}
		if reason == "" {
			reason = f.Reason
		} else if reason != f.Reason {
			mixed = true
		}
	}
	if mixed || reason == "" {
		reason = feasibility.ReasonIncompatible
	}
	return &feasibility.InfeasibleError{VesselID: vesselID, Reason: reason,
		Detail: fmt.Sprintf("no compatible berth (%s)", strings.Join(details, "; "))}
}

func (p *plan) cost(a model.Assignment) float64 {
	return p.scorer.Cost(p.vessels[a.VesselID], p.berthByID[a.BerthID], a.Window)
}

func (p *plan) objective() float64 {
	total := 0.0
	for _, id := range p.ids {
		if a, ok := p.placed[id]; ok {
			total += p.cost(a)
		}
	}
	return total
}

func (p *plan) assignments() []model.Assignment {
	out := make([]model.Assignment, 0, len(p.placed))
	for _, id := range p.ids {
		if a, ok := p.placed[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, s := range ids {
		if s == id {
			return true
		}
	}
	return false
}
