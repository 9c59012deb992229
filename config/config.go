package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/berthplan/core/engine"
	"github.com/kilianp07/berthplan/core/feasibility"
	"github.com/kilianp07/berthplan/core/journal"
	"github.com/kilianp07/berthplan/core/metrics"
	"github.com/kilianp07/berthplan/core/solver"
	"github.com/kilianp07/berthplan/infra/mqtt"
)

type Config struct {
	Engine  EngineConfig   `json:"engine"`
	Metrics metrics.Config `json:"metrics"`
	Journal journal.Config `json:"journal"`
	MQTT    mqtt.Config    `json:"mqtt"`
	API     APIConfig      `json:"api"`
	Logging LoggingConfig  `json:"logging"`
	Seed    SeedConfig     `json:"seed"`
	Sentry  SentryConfig   `json:"sentry"`
}

// EngineConfig groups the scheduling settings.
type EngineConfig struct {
	Checker feasibility.Config `json:"checker"`
	Solver  solver.Config      `json:"solver"`
	// AutoPlan, MaxRetries and TickInterval are read at the engine level.
	engine.Config `json:",squash"`
}

// APIConfig configures the HTTP server.
type APIConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `json:"addr"`
	// Token protects the journal route when set.
	Token string `json:"token"`
	// ShutdownTimeout bounds the graceful shutdown.
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// SeedConfig points at a scenario file whose berths and vessels are
// registered at startup.
type SeedConfig struct {
	Scenario string `json:"scenario"`
}

func (c *APIConfig) SetDefaults() {
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Engine.Config.SetDefaults()
	c.Engine.Solver.SetDefaults()
	c.Journal.SetDefaults()
	c.API.SetDefaults()
	c.Logging.SetDefaults()
	if c.MQTT.Broker != "" {
		c.MQTT.SetDefaults()
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.Engine.Checker.HorizonHours < 0 {
		return fmt.Errorf("engine.checker: horizon_hours must not be negative")
	}
	if c.Engine.Checker.SafetyBufferM < 0 || c.Engine.Checker.UnderKeelM < 0 {
		return fmt.Errorf("engine.checker: clearances must not be negative")
	}
	if c.Engine.Solver.Scorer.Type != "" {
		if _, err := solver.NewScorer(c.Engine.Solver.Scorer); err != nil {
			return fmt.Errorf("engine.solver: %w", err)
		}
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	for i, s := range c.Metrics.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
