// Package session manages NRL evaluation sessions on behalf of a host
// process.
//
// The Manager assigns IDs, validates and starts sessions, routes
// supplied facts to the continuation of the current suspension, and
// mirrors every lifecycle change into a Store. Two store backends ship:
// an in-memory map for tests and single-shot hosts, and SQLite for
// hosts that audit sessions across restarts. Live evaluator state never
// leaves memory; only the Record view is durable.
//
// Around the manager sit two background helpers: FactWatcher re-reads a
// YAML fact file when it changes and feeds new facts to suspended
// sessions, and Sweeper invalidates suspensions that have waited longer
// than the configured idle limit.
package session
