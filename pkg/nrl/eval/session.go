package eval

import (
	"time"

	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/env"
	"normative-hq/themis/pkg/nrl/errors"
)

// State is the lifecycle state of an evaluation session.
type State string

const (
	StateIdle        State = "idle"
	StateRunning     State = "running"
	StateSuspended   State = "suspended"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateInvalidated State = "invalidated"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateInvalidated
}

// clock supplies the timestamps temporal constraints are checked
// against. The reference time anchors relative deadlines; now is the
// evaluation clock, defaulting to the reference so that a session
// evaluates consistently at one instant.
type clock struct {
	reference time.Time
	nowFn     func() time.Time
}

func (c clock) now() time.Time {
	if c.nowFn != nil {
		return c.nowFn()
	}
	if !c.reference.IsZero() {
		return c.reference
	}
	return time.Now()
}

// resolve turns a temporal constraint into an absolute deadline.
func (c clock) resolve(tc *ast.TemporalConstraint) (time.Time, *errors.Error) {
	switch ts := tc.Time.(type) {
	case ast.RelativeTime:
		if c.reference.IsZero() {
			return time.Time{}, errors.At(errors.KindType, tc.Tok.Location(),
				"relative deadline requires a reference timestamp").
				WithSuggestion("start the session with WithReferenceTime")
		}
		return ts.Resolve(c.reference), nil
	case ast.AbsoluteTime:
		return ts.Time(), nil
	default:
		return time.Time{}, errors.At(errors.KindConstruction, tc.Tok.Location(),
			"temporal constraint carries unknown timestamp %T", tc.Time)
	}
}

// Option configures a session.
type Option func(*Session)

// WithReferenceTime sets the reference timestamp relative deadlines
// resolve against, typically the time the rule was activated.
func WithReferenceTime(t time.Time) Option {
	return func(s *Session) { s.clock.reference = t }
}

// WithNow overrides the evaluation clock. Useful in tests and for hosts
// replaying past evaluations.
func WithNow(fn func() time.Time) Option {
	return func(s *Session) { s.clock.nowFn = fn }
}

// Session is one self-contained evaluation: a rule invocation or an
// expression reduced against an environment. Sessions are
// single-threaded and cooperatively suspending: evaluation pauses only
// at fact lookups the environment cannot satisfy, and at most one
// request is outstanding at a time.
//
// A session owns its global frame for its full lifetime. Mutations and
// supplied facts stay in a session-private overlay until the session
// completes; an invalidated or failed session publishes nothing.
type Session struct {
	m            *machine
	state        State
	validated    bool
	invalidated  bool
	reason       string
	pending      *FactRequest
	pendingDesc  string
	clock        clock
	result       *EventResult
	err          *errors.Error
	expression   bool
	constructErr *errors.Error
}

// NewRuleSession prepares evaluation of a regulative rule with the given
// proposed arguments, bound positionally to the rule's parameters.
func NewRuleSession(rule *ast.RegulativeStmt, args []ast.Value, environment *env.Environment, opts ...Option) *Session {
	s := &Session{state: StateIdle}
	s.m = newMachine(s, environment)
	for _, o := range opts {
		o(s)
	}
	if len(args) != len(rule.Params) {
		s.constructErr = errors.At(errors.KindScope, rule.Tok.Location(),
			"rule %q takes %d argument(s), got %d", rule.Label, len(rule.Params), len(args))
		return s
	}
	for _, a := range args {
		s.m.pushValue(a)
	}
	s.m.push(enterRuleStep{tok: rule.Tok, rule: rule, argc: len(args)})
	return s
}

// NewExpressionSession prepares reduction of a resolved expression to a
// value.
func NewExpressionSession(expr ast.Expression, environment *env.Environment, opts ...Option) *Session {
	s := &Session{state: StateIdle, expression: true}
	s.m = newMachine(s, environment)
	for _, o := range opts {
		o(s)
	}
	s.m.push(evalStep{expr: expr})
	return s
}

// State returns the session's lifecycle state.
func (s *Session) State() State { return s.state }

// PendingRequest returns the fact request of the current suspension, or
// nil when the session is not suspended.
func (s *Session) PendingRequest() *FactRequest { return s.pending }

// PendingDescription returns the host-supplied description of the
// awaited input, set via Waiting.
func (s *Session) PendingDescription() string { return s.pendingDesc }

// Result returns the final result of a completed session, nil otherwise.
func (s *Session) Result() *EventResult { return s.result }

// Err returns the error that failed the session, nil otherwise.
func (s *Session) Err() error {
	if s.err == nil {
		return nil
	}
	return s.err
}

// Environment returns the session's current environment. After
// completion it reflects all committed mutations.
func (s *Session) Environment() *env.Environment { return s.m.env }

// Validate marks an idle session as should-proceed. Starting a session
// that was never validated is a protocol error.
func (s *Session) Validate() Event {
	if s.state != StateIdle {
		return ErrorEvent{Err: errors.New(errors.KindProtocol,
			"validate on %s session", s.state)}
	}
	s.validated = true
	return EventValidate{}
}

// Invalidate marks the session as should-abort. It is honored
// immediately when the session is idle or suspended, which are the only
// states a single-threaded host can observe between events. The
// session's staged mutations are discarded.
func (s *Session) Invalidate(reason string) Event {
	if s.state.Terminal() {
		return ErrorEvent{Err: errors.New(errors.KindProtocol,
			"invalidate on %s session", s.state)}
	}
	s.invalidated = true
	s.reason = reason
	s.abandon()
	return EventInvalidate{Reason: reason}
}

// abandon discards the session at an invalidation boundary: nothing
// staged is published and any outstanding continuation is voided.
func (s *Session) abandon() Event {
	s.state = StateInvalidated
	s.pending = nil
	s.m.cont = nil
	reason := s.reason
	if reason == "" {
		reason = "invalidated by host"
	}
	return ErrorEvent{Err: errors.New(errors.KindProtocol, "session invalidated: %s", reason)}
}

// Waiting records the host's acknowledgment that the pending fact
// request was received but its value is not yet available. The session
// remains suspended.
func (s *Session) Waiting(description string) Event {
	if s.state != StateSuspended {
		return ErrorEvent{Err: errors.New(errors.KindProtocol,
			"waiting acknowledgment on %s session", s.state)}
	}
	s.pendingDesc = description
	return EventWaiting{Description: description}
}

// Start begins evaluation. It returns the first evaluator event: a fact
// request, the final result, or an error event.
func (s *Session) Start() Event {
	if s.constructErr != nil {
		s.state = StateFailed
		s.err = s.constructErr
		return ErrorEvent{Err: s.constructErr}
	}
	if s.invalidated {
		return s.abandon()
	}
	if s.state != StateIdle {
		return ErrorEvent{Err: errors.New(errors.KindProtocol,
			"start on %s session", s.state)}
	}
	if !s.validated {
		return ErrorEvent{Err: errors.New(errors.KindProtocol,
			"start on session that was never validated")}
	}
	s.state = StateRunning
	return s.run()
}

// run drains the machine until suspension, completion or failure.
func (s *Session) run() Event {
	ev, err := s.m.loop()
	if err != nil {
		s.state = StateFailed
		s.err = err
		return ErrorEvent{Err: err}
	}
	if ev != nil {
		return ev
	}
	return s.complete()
}

// complete commits the staged overlay to the global frame and publishes
// the result. This is the only point where a session's mutations become
// visible outside it.
func (s *Session) complete() Event {
	for addr, b := range s.m.staged {
		rn := &ast.ResolvedName{Symbol: b.Symbol, Addr: addr}
		committed, err := s.m.env.Rebind(rn, b.Node)
		if err != nil {
			s.state = StateFailed
			s.err = err.(*errors.Error)
			return ErrorEvent{Err: s.err}
		}
		s.m.env = committed
	}

	if s.expression {
		if len(s.m.vals) != 1 {
			s.state = StateFailed
			s.err = errors.New(errors.KindScope,
				"expression session finished with %d values on the stack", len(s.m.vals))
			return ErrorEvent{Err: s.err}
		}
		s.result = &EventResult{Value: s.m.popValue()}
	} else {
		if s.m.result == nil {
			s.state = StateFailed
			s.err = errors.New(errors.KindScope, "rule session finished without an outcome")
			return ErrorEvent{Err: s.err}
		}
		s.result = s.m.result
	}
	s.state = StateCompleted
	return *s.result
}
