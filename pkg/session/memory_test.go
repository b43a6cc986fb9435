package session

import (
	"context"
	"testing"
	"time"
)

func testRecord(id, rule, state string, updated time.Time) *Record {
	return &Record{
		ID:        id,
		Rule:      rule,
		State:     state,
		CreatedAt: updated,
		UpdatedAt: updated,
	}
}

func TestMemoryStoreSaveGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	record := testRecord("s1", "Pay", "suspended", time.Now())
	record.PendingSymbol = "payment_received"
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Rule != "Pay" || got.PendingSymbol != "payment_received" {
		t.Errorf("Get = %+v", got)
	}

	// Stored records are decoupled from the caller's copy.
	record.Rule = "mutated"
	got, _ = store.Get(ctx, "s1")
	if got.Rule != "Pay" {
		t.Error("store shares memory with the caller's record")
	}

	// Save is an upsert.
	record.Rule = "Pay"
	record.State = "completed"
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save (update): %v", err)
	}
	got, _ = store.Get(ctx, "s1")
	if got.State != "completed" {
		t.Errorf("state after update = %q", got.State)
	}
	if store.Size() != 1 {
		t.Errorf("Size = %d", store.Size())
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFound(err) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	base := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	records := []*Record{
		testRecord("a", "Pay", "suspended", base.Add(1*time.Hour)),
		testRecord("b", "Pay", "completed", base.Add(3*time.Hour)),
		testRecord("c", "Deliver", "suspended", base.Add(2*time.Hour)),
	}
	for _, r := range records {
		if err := store.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("sorted most recent first", func(t *testing.T) {
		got, err := store.List(ctx, &Query{})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 3 || got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
			t.Errorf("order = %v", ids(got))
		}
	})

	t.Run("filter by state", func(t *testing.T) {
		got, err := store.List(ctx, &Query{States: []string{"suspended"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 {
			t.Errorf("got %d records", len(got))
		}
	})

	t.Run("filter by rule", func(t *testing.T) {
		got, err := store.List(ctx, &Query{Rule: "Deliver"})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "c" {
			t.Errorf("got %v", ids(got))
		}
	})

	t.Run("filter by updated before", func(t *testing.T) {
		cutoff := base.Add(90 * time.Minute)
		got, err := store.List(ctx, &Query{UpdatedBefore: &cutoff})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].ID != "a" {
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

		got, err = store.List(ctx, &Query{Offset: 10})
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("offset past end returned %v", ids(got))
		}
	})
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	for _, r := range []*Record{
		testRecord("a", "Pay", "completed", now),
		testRecord("b", "Pay", "suspended", now),
		testRecord("c", "Pay", "completed", now),
	} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := store.Delete(ctx, &Query{States: []string{"completed"}})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if store.Size() != 1 {
		t.Errorf("Size = %d, want 1", store.Size())
	}
	if _, err := store.Get(ctx, "b"); err != nil {
		t.Errorf("survivor missing: %v", err)
	}
}

func ids(records []*Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
