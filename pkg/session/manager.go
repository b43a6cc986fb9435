package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"normative-hq/themis/pkg/facts"
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/eval"
	"normative-hq/themis/pkg/telemetry/metrics"
)

// ExpressionRule is the record label used for expression sessions.
const ExpressionRule = "expression"

// Manager drives evaluation sessions through their lifecycle on behalf
// of a host: it assigns IDs, validates and starts sessions, routes
// supplied facts to the right continuation, and keeps the session store
// in sync with every state change.
//
// Live evaluator state (stacks, continuations) exists only in memory;
// the store holds the durable Record view. Manager methods are safe for
// concurrent use; evaluation itself is serialized per manager.
type Manager struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.SessionMetrics
	now     func() time.Time

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession pairs a running evaluator session with its durable record
// and the continuation of its current suspension, if any.
type liveSession struct {
	session *eval.Session
	record  *Record
	cont    *eval.Continuation
	started time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics attaches session metrics.
func WithMetrics(m *metrics.SessionMetrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(mgr *Manager) { mgr.logger = logger }
}

// WithClock overrides the manager's clock (for testing).
func WithClock(now func() time.Time) ManagerOption {
	return func(mgr *Manager) { mgr.now = now }
}

// NewManager creates a session manager backed by the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: slog.Default().With("component", "session.manager"),
		now:    time.Now,
		live:   make(map[string]*liveSession),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open registers a new evaluation session under a fresh ID and
// validates it. The rule label is recorded for listing and metrics;
// pass ExpressionRule for expression sessions.
func (m *Manager) Open(ctx context.Context, s *eval.Session, rule string) (string, error) {
	if ev, ok := s.Validate().(eval.ErrorEvent); ok {
		return "", ev.Err
	}

	id := uuid.NewString()
	now := m.now()
	record := &Record{
		ID:        id,
		Rule:      rule,
		State:     string(s.State()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.live[id] = &liveSession{session: s, record: record, started: now}
	m.mu.Unlock()

	if err := m.store.Save(ctx, record); err != nil {
		m.mu.Lock()
		delete(m.live, id)
		m.mu.Unlock()
		return "", err
	}

	m.logger.Debug("session opened", "session_id", id, "rule", rule)
	return id, nil
}

// Start begins evaluation of an opened session and returns the first
// evaluator event.
func (m *Manager) Start(ctx context.Context, id string) (eval.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.live[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	if m.metrics != nil {
		m.metrics.RecordStart(l.record.Rule)
	}

	ev := l.session.Start()
	m.handleEvent(ctx, id, l, ev)
	return ev, nil
}

// Supply answers the pending fact request of a suspended session and
// returns the next evaluator event.
func (m *Manager) Supply(ctx context.Context, id string, v ast.Value) (eval.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.supplyLocked(ctx, id, v)
}

func (m *Manager) supplyLocked(ctx context.Context, id string, v ast.Value) (eval.Event, error) {
	l, ok := m.live[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	if l.cont == nil {
		return nil, fmt.Errorf("session %q is not awaiting a fact (state %s)", id, l.session.State())
	}
	return m.resume(ctx, id, l, v), nil
}

// resume invokes the current continuation. A protocol error that leaves
// the session suspended (e.g. an ill-typed value) does not disturb the
// record; the host may retry with a corrected value.
func (m *Manager) resume(ctx context.Context, id string, l *liveSession, v ast.Value) eval.Event {
	cont := l.cont
	ev := cont.Resume(v)

	if _, failed := ev.(eval.ErrorEvent); failed && l.session.State() == eval.StateSuspended {
		return ev
	}

	l.cont = nil
	m.handleEvent(ctx, id, l, ev)
	return ev
}

// Acknowledge records that the pending fact request was received but
// its value is not yet available.
func (m *Manager) Acknowledge(ctx context.Context, id, description string) (eval.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.live[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	ev := l.session.Waiting(description)
	if _, failed := ev.(eval.ErrorEvent); !failed {
		l.record.PendingDescription = description
		l.record.UpdatedAt = m.now()
		if err := m.store.Save(ctx, l.record); err != nil {
			m.logger.Error("failed to persist session record", "session_id", id, "error", err)
		}
	}
	return ev, nil
}

// Invalidate aborts a session. Nothing the session staged is published.
func (m *Manager) Invalidate(ctx context.Context, id, reason string) (eval.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.live[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	ev := l.session.Invalidate(reason)
	if _, failed := ev.(eval.ErrorEvent); !failed {
		l.record.Reason = reason
		m.handleEvent(ctx, id, l, ev)
	}
	return ev, nil
}

// Session returns the live evaluator session, if the session is still
// in memory.
func (m *Manager) Session(id string) (*eval.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.live[id]
	if !ok {
		return nil, false
	}
	return l.session, true
}

// Record returns the durable record for a session.
func (m *Manager) Record(ctx context.Context, id string) (*Record, error) {
	return m.store.Get(ctx, id)
}

// List returns session records matching the query.
func (m *Manager) List(ctx context.Context, query *Query) ([]*Record, error) {
	return m.store.List(ctx, query)
}

// FeedFacts resumes every suspended session whose pending request is
// answered by the fact set. A session that suspends again on another
// fact in the set is resumed repeatedly within the same call. Returns
// the number of fact values supplied.
func (m *Manager) FeedFacts(ctx context.Context, set *facts.Set) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.live))
	for id := range m.live {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	supplied := 0
	for _, id := range ids {
		l := m.live[id]
		for l.session.State() == eval.StateSuspended {
			req := l.session.PendingRequest()
			if req == nil {
				break
			}
			v, ok := set.Lookup(req.Symbol)
			if !ok {
				break
			}
			if req.TypeName != "" && v.TypeName() != req.TypeName {
				m.logger.Warn("fact type mismatch, leaving session suspended",
					"session_id", id,
					"symbol", req.Symbol,
					"want", req.TypeName,
					"got", v.TypeName(),
				)
				break
			}
			m.resume(ctx, id, l, v)
			supplied++
		}
	}

	if supplied > 0 {
		m.logger.Info("facts fed to suspended sessions", "supplied", supplied)
	}
	return supplied
}

// SweepIdle invalidates suspended sessions that have waited longer than
// maxIdle for a fact. Returns the number of sessions invalidated.
func (m *Manager) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxIdle)
	swept := 0
	for id, l := range m.live {
		if l.session.State() != eval.StateSuspended {
			continue
		}
		if !l.record.UpdatedAt.Before(cutoff) {
			continue
		}
		l.record.Reason = "idle timeout"
		ev := l.session.Invalidate("idle timeout")
		if _, failed := ev.(eval.ErrorEvent); !failed {
			m.handleEvent(ctx, id, l, ev)
			swept++
		}
	}

	if swept > 0 {
		m.logger.Info("idle sessions swept", "swept", swept, "max_idle", maxIdle)
	}
	return swept
}

// Close persists nothing further and closes the store. Live sessions
// are dropped; suspended ones should be swept or invalidated first.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.live = make(map[string]*liveSession)
	m.mu.Unlock()

	return m.store.Close()
}

// handleEvent folds an evaluator event into the session's record,
// updates metrics, and drops the live entry once the session reaches a
// terminal state. Callers hold m.mu.
func (m *Manager) handleEvent(ctx context.Context, id string, l *liveSession, ev eval.Event) {
	wasSuspended := l.record.State == string(eval.StateSuspended)

	switch e := ev.(type) {
	case eval.EventRequest:
		l.cont = e.Continuation
		l.record.PendingSymbol = e.Request.Symbol
		l.record.PendingType = e.Request.TypeName
		l.record.PendingDescription = ""
		l.record.FactRequests++
		if m.metrics != nil {
			m.metrics.RecordFactRequest(l.record.Rule)
		}
		m.logger.Debug("session suspended on fact request",
			"session_id", id,
			"symbol", e.Request.Symbol,
			"type", e.Request.TypeName,
		)

	case eval.EventResult:
		l.record.PendingSymbol = ""
		l.record.PendingType = ""
		if e.Outcome != nil {
			satisfied := e.Outcome.Satisfied
			l.record.Satisfied = &satisfied
		}
		m.logger.Info("session completed", "session_id", id, "rule", l.record.Rule)

	case eval.EventInvalidate:
		l.record.PendingSymbol = ""
		l.record.PendingType = ""
		m.logger.Info("session invalidated",
			"session_id", id,
			"rule", l.record.Rule,
			"reason", e.Reason,
		)

	case eval.ErrorEvent:
		if l.session.Err() != nil {
			l.record.Error = l.session.Err().Error()
		} else if e.Err != nil {
			l.record.Error = e.Err.Error()
		}
		m.logger.Warn("session error",
			"session_id", id,
			"rule", l.record.Rule,
			"error", e.Err,
		)
	}

	state := l.session.State()
	l.record.State = string(state)
	l.record.UpdatedAt = m.now()

	if m.metrics != nil {
		isSuspended := state == eval.StateSuspended
		if isSuspended && !wasSuspended {
			m.metrics.RecordSuspend()
		}
		if wasSuspended && !isSuspended {
			m.metrics.RecordResume()
		}
	}

	if state.Terminal() {
		if m.metrics != nil {
			m.metrics.RecordFinish(l.record.Rule, string(state), m.now().Sub(l.started))
		}
		delete(m.live, id)
	}

	if err := m.store.Save(ctx, l.record); err != nil {
		m.logger.Error("failed to persist session record", "session_id", id, "error", err)
	}
}
