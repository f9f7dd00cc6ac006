package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewMetricsRegistersAllRequiredSeries(t *testing.T) {
	m, err := NewMetrics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.MarketdataTicksTotal.Inc()
	m.MarketdataStaleTotal.Inc()
	m.MarketdataFilterRejectedTotal.Inc()
	m.HeartbeatAgeSeconds.Set(3.5)
	m.StrategyCyclesTotal.Inc()
	m.StrategyCyclesSkippedTotal.Inc()
	m.OrderProposalsTotal.Inc()
	m.SafetyHaltedTotal.Inc()
	m.ErrorsTotal.WithLabelValues("ingest").Inc()
	m.MessagesReceivedTotal.WithLabelValues("ingest", "quotes").Inc()
	m.MessagesPublishedTotal.WithLabelValues("ingest", "candles").Inc()
	m.ReconnectAttemptsTotal.WithLabelValues("ingest", "quotes").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	wantSeries := []string{
		"marketdata_ticks_total",
		"marketdata_stale_total",
		"marketdata_filter_rejected_total",
		"heartbeat_age_seconds",
		"strategy_cycles_total",
		"strategy_cycles_skipped_total",
		"order_proposals_total",
		"safety_halted_total",
		`errors_total{component="ingest"}`,
		`messages_received_total{component="ingest",stream="quotes"}`,
		`messages_published_total{component="ingest",stream="candles"}`,
		`reconnect_attempts_total{component="ingest",stream="quotes"}`,
	}
	for _, s := range wantSeries {
		if !strings.Contains(body, s) {
			t.Errorf("expected exposition to contain %q, got:\n%s", s, body)
		}
	}
}

func TestNewMetricsIsIndependentPerInstance(t *testing.T) {
	m1, err := NewMetrics()
	if err != nil {
		t.Fatalf("unexpected error on first registry: %v", err)
	}
	m2, err := NewMetrics()
	if err != nil {
		t.Fatalf("expected a second independent registry to register cleanly, got: %v", err)
	}

	m1.MarketdataTicksTotal.Inc()

	rec := httptest.NewRecorder()
	m2.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if strings.Contains(rec.Body.String(), "marketdata_ticks_total 1") {
		t.Errorf("expected m2's registry to be unaffected by m1's counter increments")
	}
}
