package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/berthplan/core/factory"
	metrics "github.com/kilianp07/berthplan/core/metrics"
)

/*
TestNewMetricsSink_Multi validates NewMetricsSink behavior with zero, one, and multiple configs.
Cases:
  - no config -> NopSink
  - two configs -> MultiSink with two sub-sinks
  - unknown type -> error
*/
func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}

	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

// Test decoding from YAML and JSON.
func TestMetricsConfigDecode(t *testing.T) {
	var cfg metrics.Config
	if err := yaml.Unmarshal([]byte("sinks:\n  - type: nop\n  - type: nop\n"), &cfg); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	if len(cfg.Sinks) != 2 {
		t.Fatalf("expected two sinks, got %d", len(cfg.Sinks))
	}
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewMetricsSink(cfg.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
