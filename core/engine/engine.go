// Package engine is the entry point collaborators use to register vessels
// and berths, trigger planning, report disruptions and read the schedule.
// It serialises writers, retries updates that lose a version race and fans
// committed results out to the journal, metrics, event bus and notifier.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/berthplan/core/events"
	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/journal"
	"github.com/kilianp07/berthplan/core/logger"
	"github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/model"
	"github.com/kilianp07/berthplan/core/monitoring"
	"github.com/kilianp07/berthplan/core/reschedule"
	"github.com/kilianp07/berthplan/core/schedule"
	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/internal/eventbus"
)

const TriggerPlan = "plan"

// Config tunes engine behaviour.
type Config struct {
	// AutoPlan runs a planning pass after every registration.
	AutoPlan bool `json:"auto_plan" koanf:"auto_plan"`
	// MaxRetries bounds recomputation after a version conflict.
	MaxRetries int `json:"max_retries" koanf:"max_retries"`
	// TickInterval drives lifecycle transitions in Run.
	TickInterval time.Duration `json:"tick_interval" koanf:"tick_interval"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Minute
	}
}

// Notifier receives every committed summary.
type Notifier interface {
	NotifySchedule(ctx context.Context, s Summary) error
}

// Engine owns the schedule store for the lifetime of the process.
type Engine struct {
	store    *schedule.Store
	solver   *solver.Solver
	resched  *reschedule.Rescheduler
	cfg      Config
	log      logger.Logger
	journal  journal.Store
	metrics  metrics.MetricsSink
	bus      eventbus.EventBus
	notifier Notifier
	now      func() time.Time
	newID    func() string

	// writeMu serialises planning passes and event handling. Collaborators
	// are called after it is released, in commit order.
	writeMu sync.Mutex
	turns   *turnstile
	mu      sync.RWMutex

	notifyQ  chan notification
	notifyWG sync.WaitGroup
	closed   bool
}

// New creates an engine around an existing store.
func New(store *schedule.Store, s *solver.Solver, cfg Config, log logger.Logger) (*Engine, error) {
	if store == nil || s == nil {
		return nil, fmt.Errorf("engine: nil parameter provided to New")
	}
	cfg.SetDefaults()
	log = logger.OrNop(log)
	return &Engine{
		store:   store,
		solver:  s,
		resched: reschedule.New(s, log),
		cfg:     cfg,
		log:     log,
		journal: journal.NopStore{},
		metrics: metrics.NopSink{},
		now:     time.Now,
		newID:   uuid.NewString,
		turns:   newTurnstile(),
	}, nil
}

// SetJournal configures the store used to persist committed updates.
func (e *Engine) SetJournal(j journal.Store) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if j == nil {
		j = journal.NopStore{}
	}
	e.journal = j
}

// SetMetrics configures the metrics sink.
func (e *Engine) SetMetrics(sink metrics.MetricsSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	e.metrics = sink
}

// SetBus configures the bus receiving scheduling events.
func (e *Engine) SetBus(bus eventbus.EventBus) {
	e.mu.Lock()
	e.bus = bus
	e.mu.Unlock()
}

// SetNotifier configures the collaborator notified of every update.
// Notifications are delivered in commit order from a dedicated goroutine.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifier = n
	if n != nil && e.notifyQ == nil && !e.closed {
		e.notifyQ = make(chan notification, notifyQueueSize)
		e.notifyWG.Add(1)
		go e.notifyLoop(e.notifyQ)
	}
}

// SetClock replaces the wall clock, mainly for tests and replays.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

func (e *Engine) clock() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.now()
}

// Now returns the engine clock.
func (e *Engine) Now() time.Time { return e.clock() }

// Checker returns the feasibility checker the solver places vessels with.
func (e *Engine) Checker() feasibility.Checker { return e.solver.Checker() }

// Snapshot returns the current committed schedule.
func (e *Engine) Snapshot() *schedule.Schedule { return e.store.Snapshot() }

// RegisterVessel records a Pending vessel and returns its id. A missing id
// is generated.
func (e *Engine) RegisterVessel(ctx context.Context, in model.VesselInput) (string, error) {
	if in.ID == "" {
		in.ID = e.newID()
	}
	v := in.ToVessel()
	snap, err := e.store.Submit(v)
	if err != nil {
		return "", err
	}
	e.log.Infof("vessel %s registered (eta %s, %s)", v.ID, v.ETA.Format(time.RFC3339), v.ServiceDuration)
	pendingVessels.Set(float64(len(snap.Pending())))
	scheduleVersion.Set(float64(snap.Version()))
	if e.cfg.AutoPlan {
		if _, err := e.Plan(ctx); err != nil {
			e.log.Warnf("auto plan after registering %s: %v", v.ID, err)
		}
	}
	return v.ID, nil
}

// RegisterBerth inserts or replaces a berth.
func (e *Engine) RegisterBerth(ctx context.Context, b model.Berth) error {
	snap, err := e.store.AddBerth(b)
	if err != nil {
		return err
	}
	e.log.Infof("berth %s registered (%.0fm, %.1fm draft, %v)", b.ID, b.MaxLengthM, b.MaxDraftM, b.Categories)
	scheduleVersion.Set(float64(snap.Version()))
	if e.cfg.AutoPlan && len(snap.Pending()) > 0 {
		if _, err := e.Plan(ctx); err != nil {
			e.log.Warnf("auto plan after registering berth %s: %v", b.ID, err)
		}
	}
	return nil
}

// Plan places every Pending vessel around the current assignments.
func (e *Engine) Plan(ctx context.Context) (Summary, error) {
	e.writeMu.Lock()
	id := e.newID()
	sum, c, err := e.retry(ctx, TriggerPlan, func(snap *schedule.Schedule) (schedule.Update, reschedule.Outcome, error) {
		res, err := e.solver.SolveFrom(ctx, snap.Pending(), snap, e.clock())
		if err != nil {
			return schedule.Update{}, reschedule.Outcome{}, err
		}
		out := reschedule.Outcome{Placed: res.Placed, Unplaced: res.Unplaced, Objective: res.Objective}
		return res.Update(id, snap.Version(), TriggerPlan), out, nil
	}, nil)
	return e.release(ctx, sum, c, err)
}

// ReportEvent absorbs a disruption event into the schedule.
func (e *Engine) ReportEvent(ctx context.Context, ev reschedule.Event) (Summary, error) {
	if na, ok := ev.(reschedule.NewArrival); ok && na.Vessel.ID == "" {
		na.Vessel.ID = e.newID()
		ev = na
	}
	kind := string(ev.Kind())
	raw, err := reschedule.EncodeEvent(ev)
	if err != nil {
		return Summary{}, err
	}

	e.writeMu.Lock()
	id := e.newID()
	sum, c, err := e.retry(ctx, kind, func(snap *schedule.Schedule) (schedule.Update, reschedule.Outcome, error) {
		u, out, err := e.resched.Handle(ctx, ev, snap, e.clock())
		u.ID = id
		return u, out, err
	}, raw)
	sum, err = e.release(ctx, sum, c, err)
	if err != nil {
		e.reject(ctx, kind, raw, err)
		return Summary{}, err
	}
	return sum, nil
}

type computeFunc func(snap *schedule.Schedule) (schedule.Update, reschedule.Outcome, error)

// retry computes and applies an update, recomputing against a fresh
// snapshot when another writer committed first. The returned committed
// value is nil when nothing was applied.
func (e *Engine) retry(ctx context.Context, trigger string, compute computeFunc, raw []byte) (Summary, *committed, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Summary{}, nil, err
		}
		snap := e.store.Snapshot()
		start := time.Now()
		u, out, err := compute(snap)
		solveLatency.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
		if err != nil {
			return Summary{}, nil, err
		}
		sum, c, err := e.commit(snap, u, out, raw, time.Since(start))
		var conflict *schedule.ConflictError
		if errors.As(err, &conflict) {
			lastErr = err
			conflictRetries.Inc()
			e.recordConflict(trigger)
			e.log.Warnf("%s: %v, retrying (%d/%d)", trigger, err, attempt+1, e.cfg.MaxRetries)
			continue
		}
		return sum, c, err
	}
	return Summary{}, nil, lastErr
}

// commit applies u. Empty updates are not applied but still summarised.
func (e *Engine) commit(snap *schedule.Schedule, u schedule.Update, out reschedule.Outcome, raw []byte, took time.Duration) (Summary, *committed, error) {
	sum := Summary{
		UpdateID:  u.ID,
		Trigger:   u.Trigger,
		Placed:    u.Assign,
		Cleared:   out.Cleared,
		Reasons:   u.Unplaced,
		Escalated: u.Escalated,
		Objective: out.Objective,
		Version:   snap.Version(),
	}
	if u.Empty() {
		sum.Placed = nil
		sum.StillPending = pendingIDs(snap)
		return sum, nil, nil
	}
	next, applied, err := e.store.Apply(u)
	if err != nil {
		return Summary{}, nil, err
	}
	sum.Applied = applied
	sum.Version = next.Version()
	sum.StillPending = pendingIDs(next)
	pendingVessels.Set(float64(len(sum.StillPending)))
	scheduleVersion.Set(float64(next.Version()))
	if !applied {
		return sum, nil, nil
	}
	updatesApplied.WithLabelValues(u.Trigger, strconv.FormatBool(u.Escalated)).Inc()
	e.log.Infof("update %s (%s) committed at v%d: %d placed, %d pending", u.ID, u.Trigger, next.Version(), len(u.Assign), len(sum.StillPending))
	return sum, &committed{update: u, next: next, sum: sum, raw: raw, took: took}, nil
}

// publish runs the post-commit side effects. Failures are logged only.
func (e *Engine) publish(ctx context.Context, c *committed) {
	u, next, sum, raw, took := c.update, c.next, c.sum, c.raw, c.took
	e.mu.RLock()
	j, sink, bus := e.journal, e.metrics, e.bus
	e.mu.RUnlock()
	now := e.clock()

	if err := j.Append(ctx, journal.Record{
		Timestamp:   now,
		UpdateID:    u.ID,
		Trigger:     u.Trigger,
		Event:       raw,
		BaseVersion: u.BaseVersion,
		Version:     next.Version(),
		Placed:      u.Assign,
		Released:    u.Release,
		Cancelled:   u.Cancel,
		Unplaced:    u.Unplaced,
		Escalated:   u.Escalated,
	}); err != nil {
		e.log.Errorf("journal append %s: %v", u.ID, err)
	}

	if err := sink.RecordPlanResult(metrics.PlanResult{
		UpdateID:  u.ID,
		Trigger:   u.Trigger,
		Version:   next.Version(),
		Placed:    len(u.Assign),
		Unplaced:  len(u.Unplaced),
		Cleared:   len(sum.Cleared),
		Escalated: u.Escalated,
		Objective: sum.Objective,
		Duration:  took,
		Time:      now,
	}); err != nil {
		e.log.Errorf("metrics error: %v", err)
	}
	if ar, ok := sink.(metrics.AssignmentRecorder); ok && len(u.Assign) > 0 {
		evs := make([]metrics.AssignmentEvent, 0, len(u.Assign))
		for _, a := range u.Assign {
			v, _ := next.Vessel(a.VesselID)
			evs = append(evs, metrics.AssignmentEvent{
				UpdateID: u.ID, VesselID: v.ID, BerthID: a.BerthID, Category: v.Category,
				Priority: v.Priority, Window: a.Window, Wait: a.Window.Start.Sub(v.ETA), Time: now,
			})
		}
		if err := ar.RecordAssignments(evs); err != nil {
			e.log.Errorf("assignment metrics error: %v", err)
		}
	}
	if ur, ok := sink.(metrics.UnplacedRecorder); ok && len(u.Unplaced) > 0 {
		evs := make([]metrics.UnplacedEvent, 0, len(u.Unplaced))
		for _, up := range u.Unplaced {
			evs = append(evs, metrics.UnplacedEvent{UpdateID: u.ID, VesselID: up.VesselID, Reason: string(up.Reason), Time: now})
		}
		if err := ur.RecordUnplaced(evs); err != nil {
			e.log.Errorf("unplaced metrics error: %v", err)
		}
	}

	if bus != nil {
		bus.Publish(events.UpdateEvent{
			UpdateID:  u.ID,
			Trigger:   u.Trigger,
			Version:   next.Version(),
			Placed:    u.Assign,
			Unplaced:  u.Unplaced,
			Cleared:   sum.Cleared,
			Escalated: u.Escalated,
			Objective: sum.Objective,
			Duration:  took,
			Time:      now,
		})
	}
	e.enqueueNotify(ctx, sum)
}

func (e *Engine) recordConflict(trigger string) {
	e.mu.RLock()
	sink := e.metrics
	e.mu.RUnlock()
	if cr, ok := sink.(metrics.ConflictRecorder); ok {
		if err := cr.RecordConflict(trigger); err != nil {
			e.log.Errorf("conflict metrics error: %v", err)
		}
	}
}

// reject journals and announces an event that could not be absorbed.
func (e *Engine) reject(ctx context.Context, kind string, raw []byte, cause error) {
	eventsRejected.WithLabelValues(kind).Inc()
	e.log.Warnf("event %s rejected: %v", kind, cause)
	e.mu.RLock()
	j, bus := e.journal, e.bus
	e.mu.RUnlock()
	now := e.clock()
	if err := j.Append(ctx, journal.Record{Timestamp: now, Trigger: kind, Event: raw,
		Version: e.store.Snapshot().Version(), Error: cause.Error()}); err != nil {
		e.log.Errorf("journal append rejected %s: %v", kind, err)
	}
	if bus != nil {
		bus.Publish(events.RejectedEvent{Kind: kind, Err: cause.Error(), Time: now})
	}
}

// GetSchedule returns the committed assignments matching f.
func (e *Engine) GetSchedule(f schedule.Filter) []model.Assignment {
	return e.store.Query(f)
}

// GetVesselStatus returns the lifecycle status of a vessel.
func (e *Engine) GetVesselStatus(id string) (model.VesselStatus, error) {
	v, err := e.store.Vessel(id)
	if err != nil {
		return 0, err
	}
	return v.Status, nil
}

// MarkServicing records an actual berthing reported by a collaborator.
func (e *Engine) MarkServicing(id string, at time.Time) error {
	prev, _ := e.store.Vessel(id)
	snap, err := e.store.MarkServicing(id, at)
	if err != nil {
		return err
	}
	a, _ := snap.AssignmentOf(id)
	e.transitioned(snap, []schedule.Transition{{VesselID: id, BerthID: a.BerthID, From: prev.Status, To: model.VesselServicing, At: at}})
	return nil
}

// MarkDeparted records an actual departure reported by a collaborator.
func (e *Engine) MarkDeparted(id string, at time.Time) error {
	prev, _ := e.store.Vessel(id)
	snap, err := e.store.MarkDeparted(id, at)
	if err != nil {
		return err
	}
	a, _ := snap.AssignmentOf(id)
	e.transitioned(snap, []schedule.Transition{{VesselID: id, BerthID: a.BerthID, From: prev.Status, To: model.VesselDeparted, At: at}})
	return nil
}

// Tick applies the lifecycle transitions due at now.
func (e *Engine) Tick(now time.Time) ([]schedule.Transition, error) {
	trs, snap, err := e.store.Advance(now)
	if err != nil {
		return nil, err
	}
	if len(trs) > 0 {
		e.log.Debugf("tick %s: %d transitions", now.Format(time.RFC3339), len(trs))
		e.transitioned(snap, trs)
	}
	return trs, nil
}

func (e *Engine) transitioned(snap *schedule.Schedule, trs []schedule.Transition) {
	e.mu.RLock()
	sink, bus := e.metrics, e.bus
	e.mu.RUnlock()
	scheduleVersion.Set(float64(snap.Version()))
	tr, record := sink.(metrics.TransitionRecorder)
	for _, t := range trs {
		if bus != nil {
			bus.Publish(events.TransitionEvent{Transition: t, Version: snap.Version()})
		}
		if !record {
			continue
		}
		ev := metrics.TransitionEvent{VesselID: t.VesselID, BerthID: t.BerthID, From: t.From.String(), To: t.To.String(), Time: t.At}
		if t.To == model.VesselDeparted {
			v, _ := snap.Vessel(t.VesselID)
			a, _ := snap.AssignmentOf(t.VesselID)
			ev.Service = a.Window.Duration()
			ev.Wait = a.Window.Start.Sub(v.ETA)
		}
		if err := tr.RecordTransition(ev); err != nil {
			e.log.Errorf("transition metrics error: %v", err)
		}
	}
}

// Run consumes disruption events and ticks the lifecycle until ctx is
// canceled. Event failures are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context, evs <-chan reschedule.Event) {
	defer monitoring.Recover()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			if _, err := e.ReportEvent(ctx, ev); err != nil && ctx.Err() == nil {
				e.log.Errorf("event %s: %v", ev.Kind(), err)
				monitoring.CaptureException(err, map[string]string{"module": "engine", "event": string(ev.Kind())})
			}
		case <-ticker.C:
			if _, err := e.Tick(e.clock()); err != nil {
				e.log.Errorf("tick: %v", err)
				monitoring.CaptureException(err, map[string]string{"module": "engine", "op": "tick"})
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close drains pending notifications and releases the journal and the bus.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.bus != nil {
		e.bus.Close()
	}
	q, j := e.notifyQ, e.journal
	e.notifyQ = nil
	e.closed = true
	e.mu.Unlock()
	if q != nil {
		close(q)
		e.notifyWG.Wait()
	}
	return j.Close()
}
