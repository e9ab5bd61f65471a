package extension

import (
	"fmt"
	"time"

	"github.com/xraph/stepwise"
	"github.com/xraph/stepwise/backoff"
)

// Store drivers accepted by StoreConfig.Driver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBun      = "bun"
	DriverRedis    = "redis"
)

// Config holds configuration for a stepwise deployment. The mapstructure
// tags match the keys of stepwise.yaml.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`

	// DisableMigrate skips Migrate on Start.
	DisableMigrate bool `mapstructure:"disable_migrate" json:"disable_migrate"`

	// DefinitionsDir holds extra YAML definitions registered next to the
	// built-in skills.
	DefinitionsDir string `mapstructure:"definitions_dir" json:"definitions_dir,omitempty"`

	Store  StoreConfig  `mapstructure:"store" json:"store"`
	Log    LogConfig    `mapstructure:"log" json:"log"`
	Engine EngineConfig `mapstructure:"engine" json:"engine"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" json:"driver"`
	PostgresDSN   string `mapstructure:"postgres_dsn" json:"-"`
	RedisAddr     string `mapstructure:"redis_addr" json:"redis_addr,omitempty"`
	RedisPassword string `mapstructure:"redis_password" json:"-"`
	RedisDB       int    `mapstructure:"redis_db" json:"redis_db,omitempty"`
}

// LogConfig controls the daemon's slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
}

// EngineConfig overrides engine tunables. Nil pointers and zero values
// keep the defaults of stepwise.DefaultConfig.
type EngineConfig struct {
	// ConflictRetries may be set to 0 to fail on the first lost race.
	ConflictRetries  *int  `mapstructure:"conflict_retries" json:"conflict_retries,omitempty"`
	AuditDryRuns     *bool `mapstructure:"audit_dry_runs" json:"audit_dry_runs,omitempty"`
	DefaultListLimit int   `mapstructure:"default_list_limit" json:"default_list_limit,omitempty"`

	// Backoff names the conflict retry strategy: "jitter" (default) or
	// "constant". BackoffInitial and BackoffMax bound its delays.
	Backoff        string        `mapstructure:"backoff" json:"backoff,omitempty"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial" json:"backoff_initial,omitempty"`
	BackoffMax     time.Duration `mapstructure:"backoff_max" json:"backoff_max,omitempty"`

	// OperationTimeout bounds every engine operation. Zero disables it.
	OperationTimeout time.Duration `mapstructure:"operation_timeout" json:"operation_timeout,omitempty"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
		Store:      StoreConfig{Driver: DriverMemory},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Validate reports the first configuration problem, if any.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres, DriverBun:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("stepwise: store driver %q requires store.postgres_dsn", c.Store.Driver)
		}
	case DriverRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("stepwise: store driver %q requires store.redis_addr", c.Store.Driver)
		}
	default:
		return fmt.Errorf("stepwise: unknown store driver %q", c.Store.Driver)
	}
	if r := c.Engine.ConflictRetries; r != nil && *r < 0 {
		return fmt.Errorf("stepwise: engine.conflict_retries must not be negative")
	}
	if _, err := backoff.New(c.Engine.Backoff, c.Engine.BackoffInitial, c.Engine.BackoffMax); err != nil {
		return fmt.Errorf("stepwise: engine.backoff: %w", err)
	}
	if c.Engine.OperationTimeout < 0 {
		return fmt.Errorf("stepwise: engine.operation_timeout must not be negative")
	}
	return nil
}

// EngineSettings merges the overrides into base.
func (c Config) EngineSettings(base stepwise.Config) stepwise.Config {
	if r := c.Engine.ConflictRetries; r != nil {
		base.ConflictRetries = *r
	}
	if a := c.Engine.AuditDryRuns; a != nil {
		base.AuditDryRuns = *a
	}
	if c.Engine.DefaultListLimit > 0 {
		base.DefaultListLimit = c.Engine.DefaultListLimit
	}
	if c.Engine.BackoffInitial > 0 {
		base.ConflictBackoffInitial = c.Engine.BackoffInitial
	}
	if c.Engine.BackoffMax > 0 {
		base.ConflictBackoffMax = c.Engine.BackoffMax
	}
	return base
}

// BackoffStrategy builds the conflict retry strategy named by
// Engine.Backoff over the delays of settings.
func (c Config) BackoffStrategy(settings stepwise.Config) (backoff.Strategy, error) {
	return backoff.New(c.Engine.Backoff, settings.ConflictBackoffInitial, settings.ConflictBackoffMax)
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaults.ListenAddr
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
	return cfg
}
