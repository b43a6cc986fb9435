package config

import "time"

// Config is the root configuration for a themis host process.
type Config struct {
	// Rules configures where NRL fact files live.
	Rules RulesConfig `yaml:"rules"`

	// Sessions configures session lifecycle management.
	Sessions SessionsConfig `yaml:"sessions"`

	// Store configures session persistence.
	Store StoreConfig `yaml:"store"`

	// Telemetry configures logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// RulesConfig locates rule inputs on disk.
type RulesConfig struct {
	// FactsPath is the YAML fact file pre-populating the global frame.
	// Optional; sessions simply request more facts when it is sparse.
	FactsPath string `yaml:"facts_path"`

	// Watch re-reads the fact file on change and feeds new facts to
	// suspended sessions.
	Watch bool `yaml:"watch"`

	// DebounceInterval is the quiet period before a changed fact file
	// is re-read.
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// SessionsConfig governs session lifecycle.
type SessionsConfig struct {
	// MaxIdle is how long a suspended session may wait for a fact
	// before the sweeper invalidates it.
	MaxIdle time.Duration `yaml:"max_idle"`

	// SweepSchedule is the cron expression for the idle-session sweep.
	// Empty disables sweeping.
	SweepSchedule string `yaml:"sweep_schedule"`
}

// StoreConfig selects and configures the session store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures the sqlite session store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns"`

	// DisableWAL turns off write-ahead logging. WAL is on by default.
	DisableWAL bool `yaml:"disable_wal"`

	// BusyTimeout is the duration to wait when the database is locked.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected.
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix.
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem label.
	Subsystem string `yaml:"subsystem"`
}
