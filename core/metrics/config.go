package metrics

import "github.com/kilianp07/berthplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" koanf:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr" koanf:"prometheus_addr"`
}
