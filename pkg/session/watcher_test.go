package session

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"normative-hq/themis/pkg/nrl/eval"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	for i := 0; i < 5; i++ {
		d.Trigger(func() { calls.Add(1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()

	time.Sleep(150 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop", got)
	}
}

func TestShouldProcessEvent(t *testing.T) {
	fw := &FactWatcher{config: &FactWatcherConfig{Path: "/data/facts.yaml"}}

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to watched file", fsnotify.Event{Name: "/data/facts.yaml", Op: fsnotify.Write}, true},
		{"editor temp file with prefix", fsnotify.Event{Name: "/data/facts.yaml.tmp123", Op: fsnotify.Create}, true},
		{"unrelated file", fsnotify.Event{Name: "/data/other.yaml", Op: fsnotify.Write}, false},
		{"chmod ignored", fsnotify.Event{Name: "/data/facts.yaml", Op: fsnotify.Chmod}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fw.shouldProcessEvent(tt.event); got != tt.want {
				t.Errorf("shouldProcessEvent(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestFactWatcherFeedsSuspendedSessions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "facts.yaml")
	if err := os.WriteFile(path, []byte("facts: {}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	mgr := NewManager(NewMemoryStore())
	id := openAndStart(t, mgr)

	fw, err := NewFactWatcher(&FactWatcherConfig{Path: path, DebounceInterval: 20 * time.Millisecond}, mgr)
	if err != nil {
		t.Fatalf("NewFactWatcher: %v", err)
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- fw.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("facts:\n  payment_received: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		record, err := mgr.Record(ctx, id)
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if record.State == string(eval.StateCompleted) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("session never completed, state %q", record.State)
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := <-watchErr; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
