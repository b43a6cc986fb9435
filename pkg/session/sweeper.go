package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SweeperConfig configures the idle-session sweeper.
type SweeperConfig struct {
	// Schedule is the cron expression for sweep runs.
	// Empty disables the sweeper.
	//
	// Common expressions:
	//   - "0 * * * *"   - Hourly
	//   - "0 3 * * *"   - Daily at 3 AM
	Schedule string

	// MaxIdle is how long a suspended session may wait for a fact
	// before it is invalidated.
	MaxIdle time.Duration
}

// DefaultSweeperConfig returns the default sweeper configuration.
func DefaultSweeperConfig() *SweeperConfig {
	return &SweeperConfig{
		Schedule: "0 * * * *",
		MaxIdle:  24 * time.Hour,
	}
}

// Sweeper invalidates suspended sessions that have waited too long for
// a fact, on a cron schedule. A session abandoned mid-suspension would
// otherwise hold its continuation forever.
type Sweeper struct {
	manager *Manager
	config  *SweeperConfig
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewSweeper creates a new idle-session sweeper.
func NewSweeper(manager *Manager, config *SweeperConfig) *Sweeper {
	if config == nil {
		config = DefaultSweeperConfig()
	}
	return &Sweeper{
		manager: manager,
		config:  config,
		cron:    cron.New(),
		logger:  slog.Default().With("component", "session.sweeper"),
	}
}

// Start begins scheduled sweeping. If the schedule is empty, the
// sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("sweep schedule not configured, skipping sweeper")
		return nil
	}

	_, err := cron.ParseStandard(s.config.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	_, err = s.cron.AddFunc(s.config.Schedule, func() {
		s.runSweep(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("session sweeper started",
		"schedule", s.config.Schedule,
		"max_idle", s.config.MaxIdle,
	)

	// Wait for context cancellation in background
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runSweep executes one sweep cycle.
func (s *Sweeper) runSweep(ctx context.Context) {
	s.logger.Debug("starting scheduled session sweep")

	swept := s.manager.SweepIdle(ctx, s.config.MaxIdle)
	if swept > 0 {
		s.logger.Info("scheduled sweep completed", "swept", swept)
	} else {
		s.logger.Debug("scheduled sweep completed, no sessions invalidated")
	}
}

// Stop stops the sweeper and waits for any running sweep to complete.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done() // Wait for running jobs to finish
		s.running = false
		s.logger.Info("session sweeper stopped")
	}
}

// IsRunning returns true if the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled sweep time.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
