package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/berthplan/core/factory"
	coremetrics "github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/metrics/usage"
	"github.com/kilianp07/berthplan/infra/kpi"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" || c.Bucket == "" {
			return nil, fmt.Errorf("influx sink: url and bucket are required")
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("usage", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Backend string `json:"backend"`
			Path    string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store usage.Store
		switch c.Backend {
		case "", "memory":
			store = usage.NewMemoryStore()
		case "sqlite":
			if c.Path == "" {
				return nil, fmt.Errorf("usage sink: sqlite backend requires a path")
			}
			st, err := kpi.NewSQLiteStore(c.Path)
			if err != nil {
				return nil, err
			}
			store = st
		default:
			return nil, fmt.Errorf("usage sink: unknown backend %q", c.Backend)
		}
		return NewUsageSink(store, prometheus.DefaultRegisterer)
	})
}
