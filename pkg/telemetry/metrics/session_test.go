package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"normative-hq/themis/pkg/config"
)

func newTestMetrics(t *testing.T) (*SessionMetrics, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	cfg := &config.MetricsConfig{Namespace: "themis", Subsystem: "nrl"}
	return NewSessionMetrics(cfg, registry), registry
}

func TestSessionMetricsRegistration(t *testing.T) {
	sm, registry := newTestMetrics(t)

	// Touch every vector so Gather reports it.
	sm.RecordStart("Pay")
	sm.RecordFinish("Pay", "completed", time.Second)
	sm.RecordFactRequest("Pay")
	sm.RecordSuspend()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	got := make(map[string]bool, len(families))
	for _, mf := range families {
		got[mf.GetName()] = true
	}
	for _, name := range []string{
		"themis_nrl_sessions_started_total",
		"themis_nrl_sessions_finished_total",
		"themis_nrl_session_duration_seconds",
		"themis_nrl_fact_requests_total",
		"themis_nrl_sessions_suspended",
	} {
		if !got[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestSessionMetricsCounters(t *testing.T) {
	sm, _ := newTestMetrics(t)

	sm.RecordStart("Pay")
	sm.RecordStart("Pay")
	sm.RecordStart("Deliver")
	sm.RecordFinish("Pay", "completed", 50*time.Millisecond)
	sm.RecordFinish("Pay", "invalidated", time.Second)
	sm.RecordFactRequest("Pay")

	if got := testutil.ToFloat64(sm.startedTotal.WithLabelValues("Pay")); got != 2 {
		t.Errorf("started{Pay} = %v", got)
	}
	if got := testutil.ToFloat64(sm.startedTotal.WithLabelValues("Deliver")); got != 1 {
		t.Errorf("started{Deliver} = %v", got)
	}
	if got := testutil.ToFloat64(sm.finishedTotal.WithLabelValues("Pay", "completed")); got != 1 {
		t.Errorf("finished{Pay,completed} = %v", got)
	}
	if got := testutil.ToFloat64(sm.finishedTotal.WithLabelValues("Pay", "invalidated")); got != 1 {
		t.Errorf("finished{Pay,invalidated} = %v", got)
	}
	if got := testutil.ToFloat64(sm.factRequestsTotal.WithLabelValues("Pay")); got != 1 {
		t.Errorf("fact_requests{Pay} = %v", got)
	}
}

func TestSuspendedGauge(t *testing.T) {
	sm, _ := newTestMetrics(t)

	sm.RecordSuspend()
	sm.RecordSuspend()
	if got := testutil.ToFloat64(sm.suspended); got != 2 {
		t.Errorf("suspended = %v, want 2", got)
	}

	sm.RecordResume()
	if got := testutil.ToFloat64(sm.suspended); got != 1 {
		t.Errorf("suspended = %v, want 1", got)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := &config.MetricsConfig{Namespace: "themis", Subsystem: "nrl"}
	NewSessionMetrics(cfg, registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewSessionMetrics(cfg, registry)
}
