package journal

import "fmt"

// Config selects and tunes the journal backend.
type Config struct {
	// Backend is one of "", "jsonl", "rotating" or "sqlite". Empty disables
	// the journal.
	Backend    string `json:"backend" koanf:"backend"`
	Path       string `json:"path" koanf:"path"`
	MaxSizeMB  int    `json:"max_size_mb" koanf:"max_size_mb"`
	MaxBackups int    `json:"max_backups" koanf:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" koanf:"max_age_days"`
}

// SetDefaults fills rotation settings.
func (c *Config) SetDefaults() {
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups <= 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays <= 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name and path.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case "jsonl", "rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("journal: path required for backend %s", c.Backend)
		}
		return nil
	}
	return fmt.Errorf("journal: unknown backend %q", c.Backend)
}

// Open builds the configured store.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	}
	return NopStore{}, nil
}
