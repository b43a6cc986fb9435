package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"normative-hq/themis/pkg/facts"
)

// FactWatcher watches a fact file for changes, re-reads it, and feeds
// the new facts to suspended sessions through a Manager. It debounces
// rapid write bursts so a fact file saved by an editor triggers one
// reload, not several.
type FactWatcher struct {
	watcher  *fsnotify.Watcher
	manager  *Manager
	logger   *slog.Logger
	config   *FactWatcherConfig
	debounce *Debouncer

	// State
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// FactWatcherConfig contains configuration for the fact watcher.
type FactWatcherConfig struct {
	// Path is the fact file to watch.
	Path string

	// DebounceInterval is the quiet period before a changed file is
	// re-read (default: 100ms).
	DebounceInterval time.Duration
}

// DefaultFactWatcherConfig returns the default watcher configuration.
func DefaultFactWatcherConfig() *FactWatcherConfig {
	return &FactWatcherConfig{
		DebounceInterval: 100 * time.Millisecond,
	}
}

// NewFactWatcher creates a new fact watcher feeding the given manager.
func NewFactWatcher(config *FactWatcherConfig, manager *Manager) (*FactWatcher, error) {
	if config == nil {
		config = DefaultFactWatcherConfig()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FactWatcher{
		watcher:  watcher,
		manager:  manager,
		logger:   slog.Default().With("component", "session.factwatcher"),
		config:   config,
		debounce: NewDebouncer(config.DebounceInterval),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	return fw, nil
}

// Watch starts watching the fact file. This is a blocking operation
// that runs until the context is cancelled or Stop is called.
//
// The parent directory is watched rather than the file itself: editors
// replace files by rename, which would otherwise detach the watch.
func (fw *FactWatcher) Watch(ctx context.Context) error {
	fw.mu.Lock()
	if fw.running {
		fw.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	fw.running = true
	fw.mu.Unlock()

	defer func() {
		fw.mu.Lock()
		fw.running = false
		fw.mu.Unlock()
		close(fw.doneCh)
	}()

	dir := filepath.Dir(fw.config.Path)
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	fw.logger.Info("fact watcher started",
		"path", fw.config.Path,
		"debounce_ms", fw.config.DebounceInterval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			fw.logger.Info("fact watcher stopped (context cancelled)")
			return nil

		case <-fw.stopCh:
			fw.logger.Info("fact watcher stopped")
			return nil

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if !fw.shouldProcessEvent(event) {
				continue
			}

			fw.logger.Debug("fact file event detected",
				"path", event.Name,
				"op", event.Op.String(),
			)

			fw.debounce.Trigger(func() {
				fw.reload(ctx)
			})

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}

			fw.logger.Error("fact watcher error", "error", err)
			// Continue watching despite errors
		}
	}
}

// Stop stops the fact watcher.
func (fw *FactWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return nil
	}
	fw.mu.Unlock()

	close(fw.stopCh)
	<-fw.doneCh

	fw.debounce.Stop()

	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

// reload re-reads the fact file and feeds it to the manager.
func (fw *FactWatcher) reload(ctx context.Context) {
	set, err := facts.Load(fw.config.Path)
	if err != nil {
		fw.logger.Error("fact reload failed", "path", fw.config.Path, "error", err)
		return
	}

	supplied := fw.manager.FeedFacts(ctx, set)
	fw.logger.Info("fact file reloaded",
		"path", fw.config.Path,
		"facts", len(set.Facts),
		"supplied", supplied,
	)
}

// shouldProcessEvent filters directory events down to writes of the
// watched fact file.
func (fw *FactWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(fw.config.Path) ||
		strings.HasPrefix(filepath.Base(event.Name), filepath.Base(fw.config.Path))
}

// Debouncer collects rapid events and invokes the callback only after a
// quiet period.
type Debouncer struct {
	interval time.Duration
	timer    *time.Timer
	mu       sync.Mutex
	callback func()
	stopCh   chan struct{}
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Trigger arms the debouncer with a new event. The callback runs after
// the debounce interval if no new events arrive.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.callback = callback

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, func() {
		select {
		case <-d.stopCh:
			return
		default:
			d.mu.Lock()
			cb := d.callback
			d.mu.Unlock()

			if cb != nil {
				cb()
			}
		}
	})
}

// Stop stops the debouncer and cancels any pending callback.
func (d *Debouncer) Stop() {
	close(d.stopCh)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
