// Package solver builds berth allocations for pending vessels against a
// schedule snapshot. Construction is greedy by scorer rank; a bounded
// local search then swaps and relocates placements while the objective
// strictly decreases. The solver never mutates the snapshot.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/factory"
	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/schedule"
)

const (
	DefaultMaxNonImproving = 500
	DefaultMaxIterations   = 10000
	DefaultTimeBudget      = 2 * time.Second

	epsilon = 1e-9
)

// Config bounds the improvement phase.
type Config struct {
	// MaxNonImproving stops the search once every move kind has had that
	// many consecutive rejections.
	MaxNonImproving int `json:"max_non_improving" koanf:"max_non_improving"`
	// MaxIterations caps accepted moves.
	MaxIterations int `json:"max_iterations" koanf:"max_iterations"`
	// TimeBudget caps wall-clock time spent improving.
	TimeBudget time.Duration `json:"time_budget" koanf:"time_budget"`
	// Scorer selects the objective.
	Scorer factory.ModuleConfig `json:"scorer" koanf:"scorer"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxNonImproving <= 0 {
		c.MaxNonImproving = DefaultMaxNonImproving
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.TimeBudget <= 0 {
		c.TimeBudget = DefaultTimeBudget
	}
	if c.Scorer.Type == "" {
		c.Scorer.Type = "weighted_wait"
	}
}

// Result is the outcome of a solve. Placed and Unplaced are sorted by
// vessel ID.
type Result struct {
	Placed    []model.Assignment  `json:"placed"`
	Unplaced  []schedule.Unplaced `json:"unplaced"`
	Objective float64             `json:"objective"`
	Moves     int                 `json:"moves"`
	Attempts  int                 `json:"attempts"`
}

// Update converts the result into a store update against base.
func (r Result) Update(id string, base uint64, trigger string) schedule.Update {
	return schedule.Update{
		ID:          id,
		BaseVersion: base,
		Trigger:     trigger,
		Assign:      append([]model.Assignment(nil), r.Placed...),
		Unplaced:    append([]schedule.Unplaced(nil), r.Unplaced...),
	}
}

// Solver is safe for concurrent use.
type Solver struct {
	checker feasibility.Checker
	scorer  Scorer
	cfg     Config
	log     logger.Logger
	now     func() time.Time
}

// New returns a solver. A nil scorer uses WeightedWait.
func New(checker feasibility.Checker, scorer Scorer, cfg Config, log logger.Logger) *Solver {
	cfg.SetDefaults()
	if scorer == nil {
		scorer = WeightedWait{}
	}
	return &Solver{checker: checker, scorer: scorer, cfg: cfg, log: logger.OrNop(log), now: time.Now}
}

// Checker returns the feasibility checker used by the solver.
func (s *Solver) Checker() feasibility.Checker { return s.checker }

// Solve places pending vessels around the fixed assignments of snap.
// Assignments in snap that belong to vessels in pending are ignored.
func (s *Solver) Solve(ctx context.Context, pending []model.Vessel, snap *schedule.Schedule) (Result, error) {
	return s.SolveFrom(ctx, pending, snap, time.Time{})
}

// SolveFrom is Solve with no start earlier than notBefore.
func (s *Solver) SolveFrom(ctx context.Context, pending []model.Vessel, snap *schedule.Schedule, notBefore time.Time) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, v := range pending {
		if err := v.Validate(); err != nil {
			return Result{}, err
		}
	}
	p := newPlan(s.checker, s.scorer, pending, snap, notBefore)

	var unplaced []schedule.Unplaced
	for _, v := range p.constructionOrder() {
		a, _, err := p.best(v)
		if err != nil {
			unplaced = append(unplaced, toUnplaced(v.ID, err))
			continue
		}
		p.placed[v.ID] = a
	}
	constructed := p.objective()

	st, err := p.improve(ctx, s.cfg, s.now)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Placed:    p.assignments(),
		Unplaced:  unplaced,
		Objective: p.objective(),
		Moves:     st.accepted,
		Attempts:  st.attempts,
	}
	sort.Slice(res.Unplaced, func(i, j int) bool { return res.Unplaced[i].VesselID < res.Unplaced[j].VesselID })
	s.log.Debugw("solve complete", map[string]any{
		"pending":     len(pending),
		"placed":      len(res.Placed),
		"unplaced":    len(res.Unplaced),
		"constructed": constructed,
		"objective":   res.Objective,
		"moves":       res.Moves,
		"attempts":    res.Attempts,
		"stop":        st.stop,
	})
	return res, nil
}

func toUnplaced(id string, err error) schedule.Unplaced {
	var ie *feasibility.InfeasibleError
	if errors.As(err, &ie) {
		return schedule.Unplaced{VesselID: id, Reason: ie.Reason, Detail: ie.Detail}
	}
	return schedule.Unplaced{VesselID: id, Reason: feasibility.ReasonIncompatible, Detail: fmt.Sprint(err)}
}
