package session

import (
	"fmt"

	"normative-hq/themis/pkg/config"
)

// NewStoreFromConfig builds the session store selected by the store
// configuration section.
func NewStoreFromConfig(cfg *config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(&SQLiteConfig{
			Path:         cfg.SQLite.Path,
			MaxOpenConns: cfg.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.SQLite.MaxIdleConns,
			WALMode:      !cfg.SQLite.DisableWAL,
			BusyTimeout:  cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// FactWatcherConfigFromRules maps the rules configuration section onto
// a watcher configuration.
func FactWatcherConfigFromRules(cfg *config.RulesConfig) *FactWatcherConfig {
	return &FactWatcherConfig{
		Path:             cfg.FactsPath,
		DebounceInterval: cfg.DebounceInterval,
	}
}

// SweeperConfigFromSessions maps the sessions configuration section
// onto a sweeper configuration.
func SweeperConfigFromSessions(cfg *config.SessionsConfig) *SweeperConfig {
	return &SweeperConfig{
		Schedule: cfg.SweepSchedule,
		MaxIdle:  cfg.MaxIdle,
	}
}
