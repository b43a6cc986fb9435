package eval

import (
	"normative-hq/themis/pkg/nrl/ast"
	"normative-hq/themis/pkg/nrl/errors"
	"normative-hq/themis/pkg/nrl/token"
)

// Event is the closed sum of protocol events exchanged between the
// evaluator and its host. Direction is fixed per variant: EventValidate,
// EventInvalidate and EventWaiting originate from the host;
// EventRequest, EventResult and ErrorEvent originate from the evaluator.
type Event interface {
	event()
}

// EventValidate marks a started evaluation session as should-proceed.
// Emitted when the host validates the session.
type EventValidate struct{}

func (EventValidate) event() {}

// EventInvalidate marks a session as should-abort. The evaluator honors
// it at the next suspension point or completion boundary: the session is
// abandoned and none of its staged mutations are published.
type EventInvalidate struct {
	Reason string
}

func (EventInvalidate) event() {}

// EventRequest signals that evaluation needs a fact it does not have.
// The host supplies the fact by invoking the continuation exactly once
// with a value of the expected type; evaluation then resumes at the
// point of suspension without re-executing completed work.
type EventRequest struct {
	Request      *FactRequest
	Continuation *Continuation
}

func (EventRequest) event() {}

// EventWaiting acknowledges that a fact request was received but the
// concrete value is not yet available, e.g. still awaiting user entry.
// The session remains suspended.
type EventWaiting struct {
	// Description identifies the pending input in host terms.
	Description string
}

func (EventWaiting) event() {}

// EventResult is the final outcome of a completed session: a value for
// expression sessions, a rule outcome for rule sessions.
type EventResult struct {
	Value   ast.Value
	Outcome *Outcome
}

func (EventResult) event() {}

// ErrorEvent signals that evaluation terminated abnormally. Err is
// always a *errors.Error carrying the kind and source location.
type ErrorEvent struct {
	Err error
}

func (ErrorEvent) event() {}

// FactRequest identifies the unresolved fact a suspended session is
// waiting for, so the host can prompt for exactly that fact.
type FactRequest struct {
	// Symbol is the declared name of the awaited variable or relation.
	Symbol string

	// TypeName is the declared type of the awaited fact: "number",
	// "boolean", a unit type name, or empty for a relation slot that
	// accepts any value.
	TypeName string

	// Location is the source position of the lookup that suspended.
	Location token.Location
}

// Continuation is the resumable handle for one suspended evaluation. It
// captures the exact point of suspension plus the environment at that
// point. A continuation is one-shot and typed: invoking it twice, or
// with a value outside the expected type, fails with a protocol error
// instead of being silently accepted.
type Continuation struct {
	s       *Session
	name    *ast.ResolvedName
	request *FactRequest
	used    bool
}

// Request returns the fact request this continuation answers.
func (k *Continuation) Request() *FactRequest { return k.request }

// Resume supplies the awaited fact and resumes evaluation. It returns
// the next evaluator event: another request, the final result, or an
// error event. Resuming twice, resuming an invalidated or finished
// session, or supplying an ill-typed value yields a protocol error
// without touching session state.
func (k *Continuation) Resume(v ast.Value) Event {
	if k.used {
		return ErrorEvent{Err: errors.At(errors.KindProtocol, k.request.Location,
			"continuation for %q invoked twice", k.request.Symbol)}
	}
	s := k.s
	if s.invalidated {
		k.used = true
		return s.abandon()
	}
	if s.state != StateSuspended || s.m.cont != k {
		return ErrorEvent{Err: errors.At(errors.KindProtocol, k.request.Location,
			"continuation for %q does not belong to the current suspension", k.request.Symbol)}
	}
	if err := checkFactType(k.request, v); err != nil {
		return ErrorEvent{Err: err}
	}
	k.used = true
	s.m.cont = nil
	s.pending = nil
	s.state = StateRunning

	// Record the fact in the session's staged overlay so later lookups
	// within this session see it; it is published only on commit.
	if err := s.m.stage(k.name, ast.Lit(v)); err != nil {
		s.state = StateFailed
		s.err = err
		return ErrorEvent{Err: err}
	}
	s.m.pushValue(v)
	return s.run()
}

// checkFactType validates a supplied fact against the declared type of
// the awaited slot.
func checkFactType(req *FactRequest, v ast.Value) error {
	if v == nil {
		return errors.At(errors.KindProtocol, req.Location,
			"continuation for %q resumed with no value", req.Symbol)
	}
	if req.TypeName == "" {
		return nil
	}
	if v.TypeName() != req.TypeName {
		return errors.At(errors.KindProtocol, req.Location,
			"fact %q expects type %q, got %q", req.Symbol, req.TypeName, v.TypeName())
	}
	return nil
}
