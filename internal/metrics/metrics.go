// Package metrics implements spec §4.8's ops metric registry: the
// required series, each labeled the way the spec names them, exposed in
// Prometheus text format. Registration goes through a private
// *prometheus.Registry (not the global DefaultRegisterer) so a
// redefinition with a different type or label set surfaces as the
// ordinary prometheus client_golang registration error rather than a
// process-wide panic, and so multiple Metrics instances (e.g. one per
// test) never collide.
package metrics

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every required series from spec §4.8.
type Metrics struct {
	registry *prometheus.Registry

	MarketdataTicksTotal          prometheus.Counter
	MarketdataStaleTotal          prometheus.Counter
	MarketdataFilterRejectedTotal prometheus.Counter
	HeartbeatAgeSeconds           prometheus.Gauge

	StrategyCyclesTotal        prometheus.Counter
	StrategyCyclesSkippedTotal prometheus.Counter
	OrderProposalsTotal        prometheus.Counter
	SafetyHaltedTotal          prometheus.Counter

	ErrorsTotal            *prometheus.CounterVec // labels: component
	MessagesReceivedTotal  *prometheus.CounterVec // labels: component, stream
	MessagesPublishedTotal *prometheus.CounterVec // labels: component, stream
	ReconnectAttemptsTotal *prometheus.CounterVec // labels: component, stream
}

// NewMetrics builds and registers every required series against a fresh
// registry. An error here means two series were defined with a
// conflicting type or label set — a programming error, not a runtime
// condition — so callers typically treat it as fatal at startup.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,

		MarketdataTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdata_ticks_total",
			Help: "Total ticks accepted by the market-data ingest pipeline.",
		}),
		MarketdataStaleTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdata_stale_total",
			Help: "Total safety evaluations where marketdata_stale was among the reason codes (internal/safety).",
		}),
		MarketdataFilterRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketdata_filter_rejected_total",
			Help: "Total ticks rejected by the anomaly filter as outliers (internal/marketdata/filter).",
		}),
		HeartbeatAgeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "heartbeat_age_seconds",
			Help: "Seconds since the last heartbeat write for this service.",
		}),
		StrategyCyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_cycles_total",
			Help: "Total finalized-candle cycles dispatched to strategies.",
		}),
		StrategyCyclesSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strategy_cycles_skipped_total",
			Help: "Total strategy cycles that produced no intent.",
		}),
		OrderProposalsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_proposals_total",
			Help: "Total sized OrderProposals emitted by the allocator.",
		}),
		SafetyHaltedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "safety_halted_total",
			Help: "Total times the safety evaluator reported trading_enabled=false.",
		}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total errors observed, by component.",
		}, []string{"component"}),
		MessagesReceivedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_received_total",
			Help: "Total messages received, by component and stream.",
		}, []string{"component", "stream"}),
		MessagesPublishedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "Total messages published, by component and stream.",
		}, []string{"component", "stream"}),
		ReconnectAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reconnect_attempts_total",
			Help: "Total stream reconnect attempts, by component and stream.",
		}, []string{"component", "stream"}),
	}

	collectors := []prometheus.Collector{
		m.MarketdataTicksTotal,
		m.MarketdataStaleTotal,
		m.MarketdataFilterRejectedTotal,
		m.HeartbeatAgeSeconds,
		m.StrategyCyclesTotal,
		m.StrategyCyclesSkippedTotal,
		m.OrderProposalsTotal,
		m.SafetyHaltedTotal,
		m.ErrorsTotal,
		m.MessagesReceivedTotal,
		m.MessagesPublishedTotal,
		m.ReconnectAttemptsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register: %w", err)
		}
	}

	return m, nil
}

// Handler returns the promhttp handler for this registry's /metrics
// endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server runs an HTTP server exposing /metrics.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics server bound to addr.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
