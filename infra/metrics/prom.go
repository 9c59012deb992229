package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/berthplan/core/metrics"
)

// PromSink records scheduling outcomes in Prometheus metrics.
type PromSink struct {
	updates     *prometheus.CounterVec
	objective   prometheus.Gauge
	assignments *prometheus.CounterVec
	wait        *prometheus.HistogramVec
	unplaced    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	service     *prometheus.HistogramVec
	conflicts   *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

var hourBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 12, 24, 48, 96}

// NewPromSink registers scheduling metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_schedule_updates_total",
			Help: "Committed schedule updates by trigger",
		}, []string{"trigger", "escalated"}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "berth_schedule_objective",
			Help: "Priority weighted waiting hours of the last planning pass",
		}),
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_assignments_total",
			Help: "Vessel placements by berth and category",
		}, []string{"berth_id", "category"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "berth_wait_hours",
			Help:    "Waiting time between ETA and berthing",
			Buckets: hourBuckets,
		}, []string{"berth_id"}),
		unplaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_unplaced_vessels_total",
			Help: "Vessels left pending by reason",
		}, []string{"reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_vessel_transitions_total",
			Help: "Vessel lifecycle transitions",
		}, []string{"from", "to"}),
		service: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "berth_service_hours",
			Help:    "Actual time alongside of departed vessels",
			Buckets: hourBuckets,
		}, []string{"berth_id"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_schedule_conflicts_total",
			Help: "Updates recomputed after losing a version race",
		}, []string{"trigger"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "berth_events_rejected_total",
			Help: "Disruption events that could not be absorbed",
		}, []string{"kind"}),
	}
	var err error
	if s.updates, err = register(reg, s.updates); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.wait, err = register(reg, s.wait); err != nil {
		return nil, err
	}
	if s.unplaced, err = register(reg, s.unplaced); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.service, err = register(reg, s.service); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, s.conflicts); err != nil {
		return nil, err
	}
	if s.rejections, err = register(reg, s.rejections); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPlanResult counts the update and tracks the objective.
func (s *PromSink) RecordPlanResult(r coremetrics.PlanResult) error {
	s.updates.WithLabelValues(r.Trigger, strconv.FormatBool(r.Escalated)).Inc()
	s.objective.Set(r.Objective)
	return nil
}

// RecordAssignments counts placements and observes waiting times.
func (s *PromSink) RecordAssignments(evs []coremetrics.AssignmentEvent) error {
	for _, e := range evs {
		s.assignments.WithLabelValues(e.BerthID, e.Category).Inc()
		s.wait.WithLabelValues(e.BerthID).Observe(e.Wait.Hours())
	}
	return nil
}

// RecordUnplaced counts vessels left pending.
func (s *PromSink) RecordUnplaced(evs []coremetrics.UnplacedEvent) error {
	for _, e := range evs {
		s.unplaced.WithLabelValues(e.Reason).Inc()
	}
	return nil
}

// RecordTransition counts lifecycle changes and observes service times.
func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(ev.From, ev.To).Inc()
	if ev.Service > 0 {
		s.service.WithLabelValues(ev.BerthID).Observe(ev.Service.Hours())
	}
	return nil
}

// RecordConflict counts version conflicts.
func (s *PromSink) RecordConflict(trigger string) error {
	s.conflicts.WithLabelValues(trigger).Inc()
	return nil
}

// RecordRejection counts rejected disruption events.
func (s *PromSink) RecordRejection(ev coremetrics.RejectionEvent) error {
	s.rejections.WithLabelValues(ev.Kind).Inc()
	return nil
}
