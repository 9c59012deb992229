package scenarios

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/core/schedule"
	"github.com/kilianp07/berthplan/core/solver"
)

// Outcome is the result of replaying a scenario.
type Outcome struct {
	Schedule  *schedule.Schedule
	Summaries []engine.Summary
	Rejected  []error
}

// Last returns the summary of the last committed or attempted step.
func (o *Outcome) Last() engine.Summary {
	if len(o.Summaries) == 0 {
		return engine.Summary{}
	}
	return o.Summaries[len(o.Summaries)-1]
}

// Escalated reports whether any step needed a full re-solve.
func (o *Outcome) Escalated() bool {
	for _, s := range o.Summaries {
		if s.Escalated {
			return true
		}
	}
	return false
}

// Engine builds the engine a scenario runs on. The clock is frozen at
// sc.Now, or at the earliest ETA when Now is unset.
func Engine(sc *Scenario, cfg solver.Config, log logger.Logger) (*engine.Engine, error) {
	checker := sc.Checker.ToChecker()
	sol := solver.New(checker, nil, cfg, log)
	eng, err := engine.New(schedule.NewStore(checker, log), sol, engine.Config{}, log)
	if err != nil {
		return nil, err
	}
	now := sc.Now
	if now.IsZero() {
		for _, v := range sc.Vessels {
			if now.IsZero() || v.ETA.Before(now) {
				now = v.ETA
			}
		}
	}
	eng.SetClock(func() time.Time { return now })
	return eng, nil
}

// Run registers the berths and vessels of sc, plans, then reports each
// event in order. Rejected events are collected, not returned.
func Run(ctx context.Context, eng *engine.Engine, sc *Scenario) (*Outcome, error) {
	out := &Outcome{}
	for _, b := range sc.Berths {
		if err := eng.RegisterBerth(ctx, b.ToModel()); err != nil {
			return nil, fmt.Errorf("berth %s: %w", b.ID, err)
		}
	}
	for _, v := range sc.Vessels {
		if _, err := eng.RegisterVessel(ctx, v.ToInput()); err != nil {
			return nil, fmt.Errorf("vessel %s: %w", v.ID, err)
		}
	}
	sum, err := eng.Plan(ctx)
	if err != nil {
		return nil, err
	}
	out.Summaries = append(out.Summaries, sum)
	for i, def := range sc.Events {
		ev, err := def.ToEvent()
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		sum, err := eng.ReportEvent(ctx, ev)
		if err != nil {
			out.Rejected = append(out.Rejected, fmt.Errorf("event %d (%s): %w", i, ev.Kind(), err))
			continue
		}
		out.Summaries = append(out.Summaries, sum)
	}
	out.Schedule = eng.Snapshot()
	return out, nil
}

// Check compares the outcome with exp and returns every mismatch.
func (o *Outcome) Check(exp Expected) error {
	var errs []error
	if got := len(o.Schedule.Assignments()); got != exp.Placed {
		errs = append(errs, fmt.Errorf("placed: got %d, want %d", got, exp.Placed))
	}
	pending := make([]string, 0)
	for _, v := range o.Schedule.Pending() {
		pending = append(pending, v.ID)
	}
	sort.Strings(pending)
	want := append([]string{}, exp.Pending...)
	sort.Strings(want)
	if fmt.Sprint(pending) != fmt.Sprint(want) {
		errs = append(errs, fmt.Errorf("pending: got %v, want %v", pending, want))
	}
	if got := len(o.Rejected); got != exp.Rejected {
		errs = append(errs, fmt.Errorf("rejected: got %d, want %d (%v)", got, exp.Rejected, errors.Join(o.Rejected...)))
	}
	if o.Escalated() != exp.Escalated {
		errs = append(errs, fmt.Errorf("escalated: got %t, want %t", o.Escalated(), exp.Escalated))
	}
	reasons := map[string]string{}
	for _, u := range o.Last().Reasons {
		reasons[u.VesselID] = string(u.Reason)
	}
	for id, reason := range exp.Unplaced {
		if reasons[id] != reason {
			errs = append(errs, fmt.Errorf("unplaced %s: got %q, want %q", id, reasons[id], reason))
		}
	}
	for id, berth := range exp.Berths {
		a, ok := o.Schedule.AssignmentOf(id)
		if !ok || a.BerthID != berth {
			errs = append(errs, fmt.Errorf("berth of %s: got %q, want %q", id, a.BerthID, berth))
		}
	}
	return errors.Join(errs...)
}
