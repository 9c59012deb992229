package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	core "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/metrics/usage"
)

// UsageSink aggregates departures into daily berth usage records.
type UsageSink struct {
	core.NopSink
	store       usage.Store
	utilisation *prometheus.GaugeVec
	meanWait    *prometheus.GaugeVec
	calls       *prometheus.GaugeVec
}

// NewUsageSink creates a sink with Prometheus gauges registered on reg.
func NewUsageSink(store usage.Store, reg prometheus.Registerer) (*UsageSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &UsageSink{
		store: store,
		utilisation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "berth_daily_utilisation_ratio",
			Help: "Fraction of the day a berth spent servicing vessels",
		}, []string{"berth_id", "day"}),
		meanWait: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "berth_daily_mean_wait_hours",
			Help: "Mean waiting time of the vessels that departed a berth that day",
		}, []string{"berth_id", "day"}),
		calls: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "berth_daily_calls",
			Help: "Completed calls per berth and day",
		}, []string{"berth_id", "day"}),
	}
	var err error
	if s.utilisation, err = register(reg, s.utilisation); err != nil {
		return nil, err
	}
	if s.meanWait, err = register(reg, s.meanWait); err != nil {
		return nil, err
	}
	if s.calls, err = register(reg, s.calls); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the underlying usage store.
func (s *UsageSink) Store() usage.Store { return s.store }

// RecordTransition books a departure on the day it happened.
func (s *UsageSink) RecordTransition(ev core.TransitionEvent) error {
	if ev.To != "departed" || ev.BerthID == "" {
		return nil
	}
	rec := usage.Record{
		BerthID:      ev.BerthID,
		Date:         ev.Time,
		ServiceHours: ev.Service.Hours(),
		WaitHours:    maxf(ev.Wait.Hours(), 0),
		Calls:        1,
	}
	if err := s.store.Add(rec); err != nil {
		return err
	}
	day := usage.Day(rec.Date)
	records, err := s.store.Query(ev.BerthID, day, day)
	if err != nil || len(records) == 0 {
		return err
	}
	rr := records[0]
	label := day.Format(time.DateOnly)
	s.utilisation.WithLabelValues(ev.BerthID, label).Set(rr.Utilisation())
	s.meanWait.WithLabelValues(ev.BerthID, label).Set(rr.MeanWait())
	s.calls.WithLabelValues(ev.BerthID, label).Set(float64(rr.Calls))
	return nil
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
