// Package eval implements the NRL evaluator: a tree-walking interpreter
// that reduces expressions to values and executes regulative-rule
// conclusions, communicating with its host through a suspend/resume
// event protocol.
//
// Evaluation is not guaranteed to complete synchronously. When a lookup
// reaches a slot still bound to its declaring node, the fact is
// genuinely absent: the session suspends, hands the host an
// EventRequest carrying a one-shot typed Continuation, and resumes
// exactly where it left off once the fact is supplied. Already-applied
// work is never re-executed.
//
// The machine is an explicit stack interpreter rather than a recursive
// walker, so a suspension is just a return to the host with the control
// and value stacks intact. No goroutines or captured call stacks are
// involved, which keeps sessions inspectable and abortable.
//
// Per-session state machine:
//
//	Idle → Running → { Suspended → Running | Completed | Failed }
//
// with Invalidated reachable from Idle and Suspended. Mutations and
// supplied facts are staged in a session-private overlay and committed
// to the global frame only when the session completes, so an abandoned
// session publishes nothing.
package eval
