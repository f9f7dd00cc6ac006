// Package heartbeat implements the ingest-side half of spec §4.4's
// heartbeat contract: every N seconds, write {service_id,
// last_heartbeat_ts, status} to the shared ActivityStore, so
// internal/safety can compute readiness staleness. Local tick activity is
// marked per accepted tick by marketdata.Pipeline, not by this writer.
package heartbeat

import (
	"context"
	"log"
	"time"

	"trading-systemv1/internal/model"
)

// DefaultInterval matches spec §4.4's "every N seconds (default 15)".
const DefaultInterval = 15 * time.Second

// Writer periodically publishes a service's liveness to an ActivityStore.
type Writer struct {
	ServiceID string
	Store     model.ActivityStore
	Interval  time.Duration

	// Status is called at each tick to compute the current reported
	// status string (e.g. "running", "degraded"); defaults to always
	// reporting "running" if nil.
	Status func() string
}

// Run writes a heartbeat immediately and then every Interval until ctx is
// cancelled. Store write failures are logged, not fatal — a heartbeat
// writer must never bring down the ingest process it reports on.
func (w *Writer) Run(ctx context.Context) {
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	w.write(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.write(ctx)
		}
	}
}

func (w *Writer) write(ctx context.Context) {
	status := "running"
	if w.Status != nil {
		status = w.Status()
	}
	now := time.Now().UTC()
	info := model.HeartbeatInfo{
		ServiceID:     w.ServiceID,
		LastHeartbeat: &now,
		Status:        model.HeartbeatStatus(status),
	}
	if err := w.Store.WriteHeartbeat(ctx, info); err != nil {
		log.Printf("[heartbeat] write failed for %s: %v", w.ServiceID, err)
	}
}
