// Package metrics provides Prometheus metrics for NRL evaluation
// sessions: starts, terminal states, durations, fact requests and the
// current suspended count. Metrics register against a caller-supplied
// registry so hosts control exposure.
package metrics
