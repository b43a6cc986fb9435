// Package ast defines the typed syntax tree for NRL, the Normative Rule
// Language: expressions, statements, and the regulative-rule node kinds
// (deontic temporal actions, temporal constraints, rule conclusions,
// mutations and rule invocations).
//
// Nodes are immutable once constructed and own their children. The only
// behavior they carry is structural equality on values and provenance
// extraction: every node records the source tokens it was built from,
// and Span concatenates them for diagnostics.
//
// Node kinds with construction-time invariants (temporal constraints,
// rule conclusions, mutations, deontic actions, regulative rules) are
// built through New* constructors returning an error instead of a node
// when the invariant is violated. These errors represent parser or
// resolver contract violations, not user-data errors, and must abort
// building the program before any evaluation starts.
//
// Expression, Statement, Value, Timestamp and ConclusionItem are closed
// sums: each is an interface with an unexported marker method, so the
// set of implementations is fixed at compile time and evaluators can
// switch exhaustively over them.
package ast
