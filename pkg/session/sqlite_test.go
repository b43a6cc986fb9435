package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = path
	store, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	return store
}

func TestSQLiteStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	satisfied := true
	record := &Record{
		ID:                 "s1",
		Rule:               "Pay",
		State:              "completed",
		PendingDescription: "awaiting bank confirmation",
		FactRequests:       2,
		Satisfied:          &satisfied,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rule != "Pay" || got.State != "completed" || got.FactRequests != 2 {
		t.Errorf("Get = %+v", got)
	}
	if got.PendingDescription != "awaiting bank confirmation" {
		t.Errorf("pending description = %q", got.PendingDescription)
	}
	if got.Satisfied == nil || !*got.Satisfied {
		t.Errorf("satisfied = %v", got.Satisfied)
	}
	// Unset optional columns round-trip as empty.
	if got.PendingSymbol != "" || got.Error != "" || got.Reason != "" {
		t.Errorf("optional fields = %q/%q/%q", got.PendingSymbol, got.Error, got.Reason)
	}

	// Upsert replaces the row.
	record.State = "invalidated"
	record.Satisfied = nil
	record.Reason = "idle timeout"
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, _ = store.Get(ctx, "s1")
	if got.State != "invalidated" || got.Reason != "idle timeout" {
		t.Errorf("updated record = %+v", got)
	}
	if got.Satisfied != nil {
		t.Errorf("satisfied not cleared: %v", *got.Satisfied)
	}
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()

	_, err := store.Get(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestSQLiteStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	for _, r := range []*Record{
		testRecord("a", "Pay", "suspended", base.Add(1*time.Hour)),
		testRecord("b", "Pay", "completed", base.Add(3*time.Hour)),
		testRecord("c", "Deliver", "suspended", base.Add(2*time.Hour)),
	} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("ordered most recent first", func(t *testing.T) {
		got, err := store.List(ctx, &Query{})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0].ID != "b" || got[2].ID != "a" {
			t.Errorf("order = %v", ids(got))
		}
	})

	t.Run("combined filters", func(t *testing.T) {
		got, err := store.List(ctx, &Query{States: []string{"suspended"}, Rule: "Pay"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("updated before", func(t *testing.T) {
		cutoff := base.Add(150 * time.Minute)
		got, err := store.List(ctx, &Query{UpdatedBefore: &cutoff})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		got, err := store.List(ctx, &Query{Limit: 1, Offset: 1})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "c" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("delete by state", func(t *testing.T) {
		deleted, err := store.Delete(ctx, &Query{States: []string{"suspended"}})
		if err != nil {
			t.Fatal(err)
		}
		if deleted != 2 {
			t.Errorf("deleted = %d, want 2", deleted)
		}
		remaining, _ := store.List(ctx, &Query{})
		if len(remaining) != 1 || remaining[0].ID != "b" {
			t.Errorf("remaining = %v", ids(remaining))
		}
	})
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store := newTestSQLiteStore(t, path)
	if err := store.Save(ctx, testRecord("s1", "Pay", "suspended", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := newTestSQLiteStore(t, path)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.Rule != "Pay" {
		t.Errorf("record = %+v", got)
	}
}
