package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"normative-hq/themis/pkg/facts"
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
	"normative-hq/themis/pkg/nrl/eval"
	"normative-hq/themis/pkg/nrl/resolve"
	"normative-hq/themis/pkg/nrl/token"
)

func tk(text string) token.Token {
	return token.New(token.KindIdentifier, text, 1, 1)
}

func ident(symbol string) *ast.Identifier {
	return &ast.Identifier{Tok: tk(symbol), Symbol: symbol}
}

// paySession builds a session for:
//
//	payment_received: boolean
//
//	RULE Pay(amount: number)
//	  WHEN amount > 0
//	  OBLIGATED ALWAYS payment_received
//
// With payment_received unbound the session suspends on its first
// lookup, which is what the manager tests need.
func paySession(t *testing.T) *eval.Session {
	t.Helper()

	action, err := ast.NewDeonticTemporalAction(tk("OBLIGATED"), true,
		ast.ModalityObligated, ident("payment_received"), nil, nil)
	if err != nil {
		t.Fatalf("NewDeonticTemporalAction: %v", err)
	}
	rule, err := ast.NewRegulativeStmt(tk("RULE"), "Pay",
		[]ast.Param{{Name: "amount", TypeName: ast.TypeNumber}},
		&ast.Binary{Tok: tk(">"), Op: ast.OpGreaterThan, Lhs: ident("amount"), Rhs: &ast.Literal{Tok: tk("0"), Val: ast.Number(0)}},
		action, nil, true)
	if err != nil {
		t.Fatalf("NewRegulativeStmt: %v", err)
	}

	program := &ast.Program{Statements: []ast.Statement{
		&ast.TypeInstancing{Tok: tk("payment_received"), Variable: ident("payment_received"), TypeName: ast.TypeBoolean},
		rule,
	}}
	resolved, environment, err := resolve.NewResolver().Resolve(program)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	payRule, ok := resolved.Rule("Pay")
	if !ok {
		t.Fatal("rule Pay not resolved")
	}
	return eval.NewRuleSession(payRule, []ast.Value{ast.Number(100)}, environment)
}

func openAndStart(t *testing.T, mgr *Manager) string {
	t.Helper()
	ctx := context.Background()

	id, err := mgr.Open(ctx, paySession(t), "Pay")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ev, err := mgr.Start(ctx, id)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, ok := ev.(eval.EventRequest); !ok {
		t.Fatalf("Start event = %T, want fact request", ev)
	}
	return id
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	mgr := NewManager(store)

	id, err := mgr.Open(ctx, paySession(t), "Pay")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	record, err := mgr.Record(ctx, id)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if record.State != string(eval.StateIdle) || record.Rule != "Pay" {
		t.Errorf("opened record = %+v", record)
	}

	if _, err := mgr.Start(ctx, id); err != nil {
		t.Fatalf("Start: %v", err)
	}
	record, _ = mgr.Record(ctx, id)
	if record.State != string(eval.StateSuspended) {
		t.Errorf("state = %q, want suspended", record.State)
	}
	if record.PendingSymbol != "payment_received" || record.PendingType != ast.TypeBoolean {
		t.Errorf("pending = %q (%q)", record.PendingSymbol, record.PendingType)
	}
	if record.FactRequests != 1 {
		t.Errorf("fact requests = %d", record.FactRequests)
	}

	ev, err := mgr.Acknowledge(ctx, id, "awaiting bank confirmation")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if _, ok := ev.(eval.EventWaiting); !ok {
		t.Errorf("Acknowledge event = %T", ev)
	}
	record, _ = mgr.Record(ctx, id)
	if record.PendingDescription != "awaiting bank confirmation" {
		t.Errorf("pending description = %q", record.PendingDescription)
	}

	ev, err = mgr.Supply(ctx, id, ast.Boolean(true))
	if err != nil {
		t.Fatalf("Supply: %v", err)
	}
	result, ok := ev.(eval.EventResult)
	if !ok {
		t.Fatalf("Supply event = %T, want result", ev)
	}
	if result.Outcome == nil || !result.Outcome.Satisfied {
		t.Errorf("outcome = %+v, want satisfied", result.Outcome)
	}

	record, _ = mgr.Record(ctx, id)
	if record.State != string(eval.StateCompleted) {
		t.Errorf("state = %q, want completed", record.State)
	}
	if record.Satisfied == nil || !*record.Satisfied {
		t.Errorf("satisfied = %v", record.Satisfied)
	}
	if record.PendingSymbol != "" {
		t.Errorf("pending symbol not cleared: %q", record.PendingSymbol)
	}

	// Terminal sessions leave live memory; the record remains.
	if _, ok := mgr.Session(id); ok {
		t.Error("completed session still live")
	}
}

func TestManagerSupplyErrors(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())

	t.Run("unknown session", func(t *testing.T) {
		_, err := mgr.Supply(ctx, "missing", ast.Boolean(true))
		if !IsNotFound(err) {
			t.Errorf("error = %v, want not-found", err)
		}
	})

	t.Run("not awaiting a fact", func(t *testing.T) {
		id, err := mgr.Open(ctx, paySession(t), "Pay")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := mgr.Supply(ctx, id, ast.Boolean(true)); err == nil {
			t.Error("expected error supplying to an idle session")
		}
	})

	t.Run("ill-typed value is retryable", func(t *testing.T) {
		id := openAndStart(t, mgr)

		ev, err := mgr.Supply(ctx, id, ast.Number(5))
		if err != nil {
			t.Fatalf("Supply: %v", err)
		}
		if _, ok := ev.(eval.ErrorEvent); !ok {
			t.Fatalf("event = %T, want error event", ev)
		}

		// The record is untouched and the session still suspended.
		record, _ := mgr.Record(ctx, id)
		if record.State != string(eval.StateSuspended) || record.FactRequests != 1 {
			t.Errorf("record after bad supply = %+v", record)
		}

		ev, err = mgr.Supply(ctx, id, ast.Boolean(true))
		if err != nil {
			t.Fatalf("Supply (retry): %v", err)
		}
		if _, ok := ev.(eval.EventResult); !ok {
			t.Errorf("retry event = %T, want result", ev)
		}
	})
}

func TestManagerFeedFacts(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())

	first := openAndStart(t, mgr)
	second := openAndStart(t, mgr)

	t.Run("type mismatch leaves sessions suspended", func(t *testing.T) {
		set := &facts.Set{Facts: map[string]ast.Value{"payment_received": ast.Number(1)}}
		if supplied := mgr.FeedFacts(ctx, set); supplied != 0 {
			t.Errorf("supplied = %d, want 0", supplied)
		}
		record, _ := mgr.Record(ctx, first)
		if record.State != string(eval.StateSuspended) {
			t.Errorf("state = %q", record.State)
		}
	})

	t.Run("matching fact resumes every waiter", func(t *testing.T) {
		set := &facts.Set{Facts: map[string]ast.Value{"payment_received": ast.Boolean(true)}}
		if supplied := mgr.FeedFacts(ctx, set); supplied != 2 {
			t.Errorf("supplied = %d, want 2", supplied)
		}
		for _, id := range []string{first, second} {
			record, _ := mgr.Record(ctx, id)
			if record.State != string(eval.StateCompleted) {
				t.Errorf("session %s state = %q, want completed", id, record.State)
			}
		}
	})
}

func TestManagerSweepIdle(t *testing.T) {
	ctx := context.Background()
	current := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	mgr := NewManager(NewMemoryStore(), WithClock(func() time.Time { return current }))

	stale := openAndStart(t, mgr)

	current = current.Add(2 * time.Hour)
	fresh := openAndStart(t, mgr)

	current = current.Add(30 * time.Minute)
	if swept := mgr.SweepIdle(ctx, time.Hour); swept != 1 {
		t.Fatalf("swept = %d, want 1", swept)
	}

	record, _ := mgr.Record(ctx, stale)
	if record.State != string(eval.StateInvalidated) || record.Reason != "idle timeout" {
		t.Errorf("stale record = %+v", record)
	}
	record, _ = mgr.Record(ctx, fresh)
	if record.State != string(eval.StateSuspended) {
		t.Errorf("fresh record swept: %+v", record)
	}
}

func TestManagerInvalidate(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())
	id := openAndStart(t, mgr)

	ev, err := mgr.Invalidate(ctx, id, "host abort")
	if err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := ev.(eval.EventInvalidate); !ok {
		t.Fatalf("event = %T", ev)
	}

	record, _ := mgr.Record(ctx, id)
	if record.State != string(eval.StateInvalidated) || record.Reason != "host abort" {
		t.Errorf("record = %+v", record)
	}
	if _, ok := mgr.Session(id); ok {
		t.Error("invalidated session still live")
	}
}

// saveFailStore fails every Save while remembering the last record ID
// it saw.
type saveFailStore struct {
	*MemoryStore
	lastID string
}

func (s *saveFailStore) Save(ctx context.Context, record *Record) error {
	s.lastID = record.ID
	return NewStorageError("stub", "save", errors.New("disk full"))
}

func TestManagerOpenSaveFailure(t *testing.T) {
	ctx := context.Background()
	store := &saveFailStore{MemoryStore: NewMemoryStore()}
	mgr := NewManager(store)

	if _, err := mgr.Open(ctx, paySession(t), "Pay"); err == nil {
		t.Fatal("expected Open to fail when the store rejects the record")
	}

	// The failed session must not linger in live memory.
	if store.lastID == "" {
		t.Fatal("store never saw a record")
	}
	if _, ok := mgr.Session(store.lastID); ok {
		t.Error("session still live after failed open")
	}
}

func TestManagerExpressionSession(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewMemoryStore())

	s := eval.NewExpressionSession(&ast.Literal{Tok: tk("5"), Val: ast.Number(5)}, env.New())
	id, err := mgr.Open(ctx, s, ExpressionRule)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ev, err := mgr.Start(ctx, id)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	result, ok := ev.(eval.EventResult)
	if !ok {
		t.Fatalf("event = %T", ev)
	}
	if !result.Value.Equal(ast.Number(5)) {
		t.Errorf("value = %v", result.Value)
	}

	record, _ := mgr.Record(ctx, id)
	if record.Rule != ExpressionRule || record.State != string(eval.StateCompleted) {
		t.Errorf("record = %+v", record)
	}
	if record.Satisfied != nil {
		t.Error("expression session should not record satisfaction")
	}
}
