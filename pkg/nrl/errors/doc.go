// Package errors defines the structured error types shared by the NRL
// core packages.
//
// Every error is categorized by a Kind with a fixed propagation policy:
//
//   - construction: node invariant violated while building the AST;
//     fatal to program construction, raised before any evaluation.
//   - resolution: unresolvable identifier or undefined type/rule
//     reference found by the resolution pass.
//   - scope: resolved-name address and environment disagree; a
//     programming-logic bug, fatal to the current session.
//   - type: ill-shaped value reached an operator; fatal to the current
//     session, surfaced to the host as an error event.
//   - protocol: host misuse of the suspend/resume contract.
//
// No error is silently swallowed or defaulted anywhere in the core.
package errors
