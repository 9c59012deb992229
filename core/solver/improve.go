package solver

import (
	"context"
	"time"
)

type moveKind int

const (
	moveSwap moveKind = iota
	moveRelocate
)

type move struct {
	kind  moveKind
	a, b  string
	berth string
}

type searchStats struct {
	accepted int
	attempts int
	stop     string
}

// moves lists candidate moves in a fixed order. Each placed vessel
// contributes its relocations to every berth followed by its swaps with
// the vessels after it, so both kinds appear early in a pass.
func (p *plan) moves() []move {
	ids := make([]string, 0, len(p.placed))
	for _, id := range p.ids {
		if _, ok := p.placed[id]; ok {
			ids = append(ids, id)
		}
	}
	out := make([]move, 0, len(ids)*len(ids)/2+len(ids)*len(p.berths))
	for i, id := range ids {
		for _, b := range p.berths {
			out = append(out, move{kind: moveRelocate, a: id, berth: b.ID})
		}
		for j := i + 1; j < len(ids); j++ {
			out = append(out, move{kind: moveSwap, a: id, b: ids[j]})
		}
	}
	return out
}

// improve runs first-improvement local search. The pass restarts after
// every accepted move and ends on a full pass without improvement, on the
// configured bounds, or on cancellation. Rejections are counted per move
// kind: a kind that reaches MaxNonImproving is skipped and the search stops
// once every kind has.
func (p *plan) improve(ctx context.Context, cfg Config, now func() time.Time) (searchStats, error) {
	var st searchStats
	deadline := now().Add(cfg.TimeBudget)
	var rejected [2]int
	exhausted := func() bool {
		return rejected[moveSwap] >= cfg.MaxNonImproving && rejected[moveRelocate] >= cfg.MaxNonImproving
	}
	for {
		improved := false
		for _, m := range p.moves() {
			if rejected[m.kind] >= cfg.MaxNonImproving {
				continue
			}
			if err := ctx.Err(); err != nil {
				return st, err
			}
			if !now().Before(deadline) {
				st.stop = "time_budget"
				return st, nil
			}
			st.attempts++
			if p.try(m) {
				st.accepted++
				rejected = [2]int{}
				improved = true
				break
			}
			rejected[m.kind]++
			if exhausted() {
				st.stop = "non_improving"
				return st, nil
			}
		}
		if !improved {
			st.stop = "local_optimum"
			return st, nil
		}
		if st.accepted >= cfg.MaxIterations {
			st.stop = "max_iterations"
			return st, nil
		}
	}
}

// try applies m when it strictly lowers the objective and reports whether
// it did. Rejected moves leave the plan unchanged.
func (p *plan) try(m move) bool {
	switch m.kind {
	case moveSwap:
		return p.trySwap(m.a, m.b)
	case moveRelocate:
		return p.tryRelocate(m.a, m.berth)
	}
	return false
}

func (p *plan) tryRelocate(id, berthID string) bool {
	old := p.placed[id]
	before := p.cost(old)
	delete(p.placed, id)
	na, c, err := p.placeOn(p.vessels[id], berthID)
	if err != nil || c >= before-epsilon {
		p.placed[id] = old
		return false
	}
	p.placed[id] = na
	return true
}

// trySwap exchanges the berths of two vessels. On a shared berth it
// reverses their order instead.
func (p *plan) trySwap(x, y string) bool {
	ax, ay := p.placed[x], p.placed[y]
	before := p.cost(ax) + p.cost(ay)
	restore := func() bool {
		p.placed[x], p.placed[y] = ax, ay
		return false
	}
	delete(p.placed, x)
	delete(p.placed, y)

	first, second := x, y
	firstBerth, secondBerth := ay.BerthID, ax.BerthID
	if ax.BerthID == ay.BerthID {
		firstBerth = ax.BerthID
		if ax.Window.Start.Before(ay.Window.Start) {
			first, second = y, x
		}
	}
	nf, cf, err := p.placeOn(p.vessels[first], firstBerth)
	if err != nil {
		return restore()
	}
	p.placed[first] = nf
	ns, cs, err := p.placeOn(p.vessels[second], secondBerth)
	if err != nil || cf+cs >= before-epsilon {
		delete(p.placed, first)
		return restore()
	}
	p.placed[second] = ns
	return true
}
