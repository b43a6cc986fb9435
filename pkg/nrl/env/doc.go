// Package env implements the lexically-scoped variable store the NRL
// evaluator runs against.
//
// Variables are addressed exclusively through resolved (scope, slot)
// addresses computed once by the resolution pass, making every access
// O(1). The environment is intentionally dumb and defensive: it trusts
// the address but re-validates the stored symbol on every access, so a
// resolution bug surfaces as a scope error immediately instead of
// silently reading the wrong variable.
//
// Environments are persistent values. SetVar, AddVar, AddFrame and
// RemoveFrame return a new Environment that shares every frame except
// the one touched, so an older snapshot remains lookup-equivalent to its
// pre-mutation state. The single exception is the global frame, which is
// shared by reference across all environments derived within one
// evaluation session; it must not be shared across concurrent sessions.
package env
