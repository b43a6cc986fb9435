package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"normative-hq/themis/pkg/config"
)

// SessionMetrics tracks metrics related to NRL evaluation sessions.
//
// Metrics:
//   - themis_nrl_sessions_started_total: Sessions started, by rule
//   - themis_nrl_sessions_finished_total: Sessions finished, by rule and final state
//   - themis_nrl_session_duration_seconds: Wall time from start to terminal state
//   - themis_nrl_fact_requests_total: Fact requests raised, by rule
//   - themis_nrl_sessions_suspended: Sessions currently awaiting a fact
type SessionMetrics struct {
	// Sessions started
	startedTotal *prometheus.CounterVec

	// Sessions reaching a terminal state
	finishedTotal *prometheus.CounterVec

	// Session wall time from start to terminal state
	sessionDuration *prometheus.HistogramVec

	// Fact requests raised by suspending sessions
	factRequestsTotal *prometheus.CounterVec

	// Sessions currently suspended
	suspended prometheus.Gauge
}

// NewSessionMetrics creates and registers session metrics with the
// provided registry.
func NewSessionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *SessionMetrics {
	sm := &SessionMetrics{
		startedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_started_total",
				Help:      "Total number of evaluation sessions started",
			},
			[]string{"rule"},
		),

		finishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_finished_total",
				Help:      "Total number of evaluation sessions reaching a terminal state",
			},
			[]string{"rule", "state"},
		),

		sessionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "session_duration_seconds",
				Help:      "Wall time from session start to terminal state",
				// Sessions can wait on human input, so buckets run
				// from microseconds to hours.
				Buckets: prometheus.ExponentialBuckets(0.000001, 10, 11), // 1µs to ~28h
			},
			[]string{"rule"},
		),

		factRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "fact_requests_total",
				Help:      "Total number of fact requests raised by suspending sessions",
			},
			[]string{"rule"},
		),

		suspended: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_suspended",
				Help:      "Number of sessions currently awaiting a fact",
			},
		),
	}

	registry.MustRegister(
		sm.startedTotal,
		sm.finishedTotal,
		sm.sessionDuration,
		sm.factRequestsTotal,
		sm.suspended,
	)

	return sm
}

// RecordStart records a session start.
func (sm *SessionMetrics) RecordStart(rule string) {
	sm.startedTotal.WithLabelValues(rule).Inc()
}

// RecordFinish records a session reaching a terminal state.
//
// Parameters:
//   - rule: label of the rule under evaluation
//   - state: terminal state ("completed", "failed", "invalidated")
//   - duration: wall time from start to the terminal state
func (sm *SessionMetrics) RecordFinish(rule, state string, duration time.Duration) {
	sm.finishedTotal.WithLabelValues(rule, state).Inc()
	sm.sessionDuration.WithLabelValues(rule).Observe(duration.Seconds())
}

// RecordFactRequest records a suspension raising a fact request.
func (sm *SessionMetrics) RecordFactRequest(rule string) {
	sm.factRequestsTotal.WithLabelValues(rule).Inc()
}

// RecordSuspend records a session entering the suspended state.
func (sm *SessionMetrics) RecordSuspend() {
	sm.suspended.Inc()
}

// RecordResume records a session leaving the suspended state.
func (sm *SessionMetrics) RecordResume() {
	sm.suspended.Dec()
}
