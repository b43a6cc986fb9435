package config

import "fmt"

// Validate checks a configuration for inconsistencies. It is called by
// LoadConfig after defaults are applied, so zero values for defaulted
// fields never reach it.
func Validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("store.backend must be \"memory\" or \"sqlite\", got %q", cfg.Store.Backend)
	}

	if cfg.Store.Backend == "sqlite" && cfg.Store.SQLite.Path == "" {
		return fmt.Errorf("store.sqlite.path is required for the sqlite backend")
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("telemetry.logging.level must be one of debug, info, warn, error; got %q",
			cfg.Telemetry.Logging.Level)
	}

	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("telemetry.logging.format must be \"json\" or \"text\", got %q",
			cfg.Telemetry.Logging.Format)
	}

	if cfg.Sessions.MaxIdle < 0 {
		return fmt.Errorf("sessions.max_idle must not be negative")
	}

	return nil
}
