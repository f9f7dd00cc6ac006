// Command api exposes the process-external surface every other service
// shares: /healthz, /readyz, /livez, and /metrics. HTTP routers for
// trading operations are explicitly out of scope (spec.md §1) — this
// stays a thin readiness/metrics process, not a REST API, structurally
// grounded on the teacher's cmd/mdengine.go metrics-and-health server.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"trading-systemv1/internal/config"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/safety"
	redisstore "trading-systemv1/internal/store/redis"
)

func main() {
	logger.Init("api", slog.LevelInfo)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[api] starting...")

	cfg := config.Load()

	prom, err := metrics.NewMetrics()
	if err != nil {
		log.Fatalf("[api] metrics init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[api] shutdown signal received")
		cancel()
	}()

	activity, err := redisstore.NewActivityStore(redisstore.ActivityStoreConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("[api] redis activity store init failed: %v", err)
	}
	defer activity.Close()

	src := safety.NewConfigSource()

	// safeToRun is refreshed on a timer rather than per-request, so
	// ReadyzHandler's state() stays a cheap read with no live I/O.
	var safeToRun atomic.Bool
	refresh := func() {
		lastMS, err := activity.ReadLastMarketdataTS(ctx)
		if err != nil {
			log.Printf("[api] activity store read failed: %v", err)
			safeToRun.Store(false)
			return
		}
		var lastTS *time.Time
		if lastMS != nil {
			t := time.UnixMilli(*lastMS).UTC()
			lastTS = &t
		}
		state := safety.EvaluateFromSource(src, lastTS, time.Now().UTC(), safety.DefaultStaleThresholdSeconds)
		safeToRun.Store(state.SafeToRun())
		for _, reason := range state.ReasonCodes {
			if reason == "marketdata_stale" {
				prom.MarketdataStaleTotal.Inc()
				break
			}
		}
		if !state.SafeToRun() {
			log.Printf("[api] not safe to run: %v", state.ReasonCodes)
		}
	}
	refresh()

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.Handle("/livez", safety.LivezHandler())
	mux.Handle("/healthz", safety.HealthzHandler(safeToRun.Load))
	mux.Handle("/readyz", safety.ReadyzHandler(safeToRun.Load))

	httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("[api] http server listening on %s", cfg.MetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] http server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("[api] stopped")
}
