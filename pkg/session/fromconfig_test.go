package session

import (
	"path/filepath"
	"testing"
	"time"

	"normative-hq/themis/pkg/config"
)

func TestNewStoreFromConfig(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		store, err := NewStoreFromConfig(&config.StoreConfig{Backend: "memory"})
		if err != nil {
			t.Fatalf("NewStoreFromConfig: %v", err)
		}
		defer store.Close()
		if _, ok := store.(*MemoryStore); !ok {
			t.Errorf("store = %T, want *MemoryStore", store)
		}
	})

	t.Run("sqlite backend maps every field", func(t *testing.T) {
		cfg := &config.StoreConfig{
			Backend: "sqlite",
			SQLite: config.SQLiteConfig{
				Path:         filepath.Join(t.TempDir(), "sessions.db"),
				MaxOpenConns: 3,
				MaxIdleConns: 2,
				DisableWAL:   true,
				BusyTimeout:  time.Second,
			},
		}
		store, err := NewStoreFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewStoreFromConfig: %v", err)
		}
		defer store.Close()

		sqlite, ok := store.(*SQLiteStore)
		if !ok {
			t.Fatalf("store = %T, want *SQLiteStore", store)
		}
		if sqlite.config.Path != cfg.SQLite.Path {
			t.Errorf("path = %q, want %q", sqlite.config.Path, cfg.SQLite.Path)
		}
		if sqlite.config.MaxOpenConns != 3 || sqlite.config.MaxIdleConns != 2 {
			t.Errorf("conns = %d/%d, want 3/2", sqlite.config.MaxOpenConns, sqlite.config.MaxIdleConns)
		}
		if sqlite.config.WALMode {
			t.Error("disable_wal did not turn WAL mode off")
		}
		if sqlite.config.BusyTimeout != time.Second {
			t.Errorf("busy timeout = %v, want 1s", sqlite.config.BusyTimeout)
		}
	})

	t.Run("wal on by default", func(t *testing.T) {
		cfg := &config.StoreConfig{
			Backend: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: filepath.Join(t.TempDir(), "sessions.db"),
			},
		}
		store, err := NewStoreFromConfig(cfg)
		if err != nil {
			t.Fatalf("NewStoreFromConfig: %v", err)
		}
		defer store.Close()
		if !store.(*SQLiteStore).config.WALMode {
			t.Error("WAL mode off without disable_wal")
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := NewStoreFromConfig(&config.StoreConfig{Backend: "postgres"}); err == nil {
			t.Error("expected error for unknown backend")
		}
	})
}

func TestFactWatcherConfigFromRules(t *testing.T) {
	got := FactWatcherConfigFromRules(&config.RulesConfig{
		FactsPath:        "facts.yaml",
		DebounceInterval: 250 * time.Millisecond,
	})
	if got.Path != "facts.yaml" {
		t.Errorf("path = %q", got.Path)
	}
	if got.DebounceInterval != 250*time.Millisecond {
		t.Errorf("debounce = %v", got.DebounceInterval)
	}
}

func TestSweeperConfigFromSessions(t *testing.T) {
	got := SweeperConfigFromSessions(&config.SessionsConfig{
		MaxIdle:       45 * time.Minute,
		SweepSchedule: "0 * * * *",
	})
	if got.Schedule != "0 * * * *" {
		t.Errorf("schedule = %q", got.Schedule)
	}
	if got.MaxIdle != 45*time.Minute {
		t.Errorf("max idle = %v", got.MaxIdle)
	}
}
