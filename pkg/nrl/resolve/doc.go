// Package resolve implements the name-resolution pass that prepares a
// parsed NRL program for evaluation.
//
// The pass rewrites every free identifier occurrence into a resolved
// name carrying a fixed (scope, slot) address, links rule invocations to
// their target rules, and bootstraps an environment whose global frame
// has one slot per declared variable and relation, each bound to its
// declaring node. The evaluator never searches by name at runtime; it
// relies entirely on the addresses this pass computes.
//
// Resolution errors are accumulated into an errors.List so that every
// unresolved identifier and undefined type or rule in the program is
// reported in one run.
package resolve
