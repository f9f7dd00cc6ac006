// Command ingest runs the C1-C5 market-data pipeline: a broker-agnostic
// websocket stream reconnected and backpressure-bounded by
// internal/marketdata/stream, filtered for anomalies, aggregated into
// multi-timeframe candles, and persisted to the file-backed NDJSON
// stores with a Redis Streams mirror for low-latency strategy fan-out.
// Structurally grounded on the teacher's cmd/mdengine/main.go: env-driven
// config, a metrics server started before the pipeline, signal-driven
// graceful shutdown.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trading-systemv1/internal/aggregator"
	"trading-systemv1/internal/config"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/marketdata"
	"trading-systemv1/internal/marketdata/filter"
	"trading-systemv1/internal/marketdata/stream"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/safety"
	filestore "trading-systemv1/internal/store/file"
	redisstore "trading-systemv1/internal/store/redis"
	"trading-systemv1/internal/timeframe"
)

// candleFanout writes every candle to the durable file store and mirrors
// finalized ones to Redis Streams, satisfying model.CandleStore while
// exercising both the §11 file-store and Redis-Streams domain wiring from
// one ingest write path.
type candleFanout struct {
	primary *filestore.CandleStore
	mirror  *redisstore.CandleStreamWriter
}

func (f candleFanout) WriteCandle(ctx context.Context, c model.Candle) error {
	if err := f.primary.WriteCandle(ctx, c); err != nil {
		return err
	}
	if err := f.mirror.Publish(ctx, c); err != nil {
		log.Printf("[ingest] candle stream publish failed (durable write already succeeded): %v", err)
	}
	return nil
}

func (f candleFanout) ReadCandles(ctx context.Context, symbol, tfLabel string, afterTS int64) ([]model.Candle, error) {
	return f.primary.ReadCandles(ctx, symbol, tfLabel, afterTS)
}

func (f candleFanout) Close() error { return f.primary.Close() }

var _ model.CandleStore = (*candleFanout)(nil)

func main() {
	logger.Init("ingest", slog.LevelInfo)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[ingest] starting...")

	cfg := config.Load()

	prom, err := metrics.NewMetrics()
	if err != nil {
		log.Fatalf("[ingest] metrics init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[ingest] shutdown signal received")
		cancel()
	}()

	activity, err := redisstore.NewActivityStore(redisstore.ActivityStoreConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		log.Fatalf("[ingest] redis activity store init failed: %v", err)
	}
	defer activity.Close()

	fanout := candleFanout{
		primary: filestore.NewCandleStore(filestore.CandleStoreConfig{Root: cfg.ResolvedCandleStoreRoot()}),
		mirror:  redisstore.NewCandleStreamWriter(activity.Client()),
	}
	tickStore := filestore.NewTickStore(filestore.TickStoreConfig{Root: cfg.ResolvedTickStoreRoot()})

	var tfs []timeframe.Timeframe
	for _, seconds := range cfg.ParseTFs() {
		tf, err := timeframe.New(timeframe.UnitSecond, seconds)
		if err != nil {
			log.Printf("[ingest] skipping invalid timeframe %ds: %v", seconds, err)
			continue
		}
		tfs = append(tfs, tf)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.Handle("/livez", safety.LivezHandler())
	httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("[ingest] http server listening on %s", cfg.MetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[ingest] http server error: %v", err)
		}
	}()

	for _, symbol := range cfg.ParseSymbols() {
		symbol := symbol
		pipeline := marketdata.NewPipeline(marketdata.PipelineConfig{
			ServiceID:    "ingest-" + symbol,
			Source:       stream.WebSocketSource{URL: cfg.StreamAddr},
			StreamConfig: stream.Config{},
			FilterConfig: filter.Config{},
			AggregatorConfig: aggregator.Config{
				Timeframes:    tfs,
				Lateness:      cfg.Lateness(),
				EmitMode:      aggregator.EmitFinalOnly,
				FlushInterval: time.Second,
			},
			CandleStore:   fanout,
			TickStore:     tickStore,
			ActivityStore: activity,
			OnTicksReceived: func() {
				prom.MarketdataTicksTotal.Inc()
			},
			OnTicksDropped: func() {
				prom.MarketdataFilterRejectedTotal.Inc()
			},
			OnReconnect: func() {
				prom.ReconnectAttemptsTotal.WithLabelValues("ingest", symbol).Inc()
			},
			OnParseError: func(err error) {
				prom.ErrorsTotal.WithLabelValues("ingest").Inc()
			},
		})

		go func() {
			if err := pipeline.Run(ctx); err != nil {
				log.Printf("[ingest] pipeline for %s exited: %v", symbol, err)
			}
		}()
	}

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("[ingest] stopped")
}
