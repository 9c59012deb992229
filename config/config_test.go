package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

//nolint:gocyclo
func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `engine:
  auto_plan: true
  max_retries: 5
  tick_interval: 30s
  checker:
    horizon_hours: 72
    safety_buffer_m: 5
    under_keel_m: 0.5
  solver:
    max_iterations: 100
    time_budget: 200ms
    scorer:
      type: weighted_wait
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  use_tls: false
metrics:
  prometheus_addr: ":2112"
  sinks:
    - type: "prometheus"
journal:
  backend: rotating
  path: /tmp/journal.jsonl
api:
  addr: ":8080"
  token: secret
seed:
  scenario: port.yaml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"auto_plan", cfg.Engine.AutoPlan, true},
		{"max_retries", cfg.Engine.MaxRetries, 5},
		{"tick_interval", cfg.Engine.TickInterval, 30 * time.Second},
		{"horizon_hours", cfg.Engine.Checker.HorizonHours, 72.0},
		{"safety_buffer_m", cfg.Engine.Checker.SafetyBufferM, 5.0},
		{"under_keel_m", cfg.Engine.Checker.UnderKeelM, 0.5},
		{"max_iterations", cfg.Engine.Solver.MaxIterations, 100},
		{"time_budget", cfg.Engine.Solver.TimeBudget, 200 * time.Millisecond},
		{"scorer", cfg.Engine.Solver.Scorer.Type, "weighted_wait"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"username", cfg.MQTT.Username, "user"},
		{"updates_topic", cfg.MQTT.UpdatesTopic, "berth/schedule/updates"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"prometheus_addr", cfg.Metrics.PrometheusAddr, ":2112"},
		{"journal.backend", cfg.Journal.Backend, "rotating"},
		{"journal.max_backups", cfg.Journal.MaxBackups, 5},
		{"api.addr", cfg.API.Addr, ":8080"},
		{"api.token", cfg.API.Token, "secret"},
		{"api.shutdown_timeout", cfg.API.ShutdownTimeout, 5 * time.Second},
		{"seed", cfg.Seed.Scenario, "port.yaml"},
		{"logging.level", cfg.Logging.Level, "info"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := writeConfig(t, "config.json", `{"engine":{"checker":{"horizon_hours":24}},"api":{"addr":":8080"}}`)
	t.Setenv("K_API__ADDR", ":9999")
	t.Setenv("K_ENGINE__AUTO_PLAN", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.True(t, cfg.Engine.AutoPlan)
	assert.Equal(t, 24.0, cfg.Engine.Checker.HorizonHours)
	assert.Equal(t, 3, cfg.Engine.MaxRetries)
	assert.Empty(t, cfg.MQTT.ClientID, "mqtt defaults only apply when a broker is set")
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
	}{
		"format":    {"config.toml", "a = 1"},
		"journal":   {"config.yaml", "journal:\n  backend: mongo\n"},
		"scorer":    {"config.yaml", "engine:\n  solver:\n    scorer:\n      type: fastest\n"},
		"horizon":   {"config.yaml", "engine:\n  checker:\n    horizon_hours: -1\n"},
		"log level": {"config.yaml", "logging:\n  level: loud\n"},
		"sink type": {"config.yaml", "metrics:\n  sinks:\n    - conf: {}\n"},
		"sentry":    {"config.yaml", "sentry:\n  traces_sample_rate: 2\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.name, tc.data))
			assert.Error(t, err)
		})
	}
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoggingConfig(t *testing.T) {
	c := LoggingConfig{Format: "console"}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.True(t, c.Console())
	assert.Equal(t, "info", c.Level)
	assert.Error(t, LoggingConfig{Level: "info", Format: "xml"}.Validate())
}

func TestCheckerDefaultsKeepExactLength(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", "api:\n  addr: \":8080\"\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Engine.Checker.SafetyBufferM)
	assert.Zero(t, cfg.Engine.Checker.UnderKeelM)
}
