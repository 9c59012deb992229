package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveLatency    *prometheus.HistogramVec
	updatesApplied  *prometheus.CounterVec
	conflictRetries prometheus.Counter
	eventsRejected  *prometheus.CounterVec
	pendingVessels  prometheus.Gauge
	scheduleVersion prometheus.Gauge
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter, *prometheus.CounterVec, prometheus.Gauge, prometheus.Gauge) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "berthplan_solve_duration_seconds",
			Help:    "Time spent computing a schedule update",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)
	upd := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berthplan_updates_applied_total",
			Help: "Number of schedule updates committed",
		},
		[]string{"trigger", "escalated"},
	)
	conf := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "berthplan_conflict_retries_total",
			Help: "Number of updates recomputed after a version conflict",
		},
	)
	rej := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "berthplan_events_rejected_total",
			Help: "Number of disruption events that could not be absorbed",
		},
		[]string{"kind"},
	)
	pend := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "berthplan_pending_vessels",
			Help: "Vessels currently waiting for a berth",
		},
	)
	ver := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "berthplan_schedule_version",
			Help: "Version of the committed schedule",
		},
	)
	return lat, upd, conf, rej, pend, ver
}

func init() {
	solveLatency, updatesApplied, conflictRetries, eventsRejected, pendingVessels, scheduleVersion = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers engine metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveLatency, updatesApplied, conflictRetries, eventsRejected, pendingVessels, scheduleVersion)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveLatency, updatesApplied, conflictRetries, eventsRejected, pendingVessels, scheduleVersion = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
