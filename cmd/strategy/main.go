// Command strategy consumes finalized candles published by cmd/ingest
// over Redis Streams, routes them through the registered strategies,
// and carries each emitted intent through the time-gate, allocator,
// and risk circuit breakers into a sized model.OrderProposal, per
// spec §4.6-§4.7 (C6-C8). Structurally grounded on the teacher's
// cmd/indengine/main.go: a consumer-group stream reader feeding a
// compute engine, metrics server started up front, signal-driven
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

	"trading-systemv1/internal/breaker"
	"trading-systemv1/internal/config"
	"trading-systemv1/internal/feesplit"
	"trading-systemv1/internal/intent"
	"trading-systemv1/internal/logger"
	"trading-systemv1/internal/metrics"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/notification"
	"trading-systemv1/internal/ringbuf"
	"trading-systemv1/internal/safety"
	filestore "trading-systemv1/internal/store/file"
	redisstore "trading-systemv1/internal/store/redis"
	sqlitestore "trading-systemv1/internal/store/sqlite"
	"trading-systemv1/internal/strategy"
	"trading-systemv1/internal/timegate"

	goredis "github.com/go-redis/redis/v8"
)

func main() {
	logger.Init("strategy", slog.LevelInfo)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Println("[strategy] starting...")

	cfg := config.Load()
	strategyCfg, err := config.LoadStrategyConfig("config/strategies.yaml")
	if err != nil {
		log.Fatalf("[strategy] strategy config load failed: %v", err)
	}

	prom, err := metrics.NewMetrics()
	if err != nil {
		log.Fatalf("[strategy] metrics init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[strategy] shutdown signal received")
		cancel()
	}()

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()

	ledgerStore, err := sqlitestore.NewLedgerStore(sqlitestore.LedgerStoreConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[strategy] ledger store init failed: %v", err)
	}
	defer ledgerStore.Close()

	proposalStore := filestore.NewProposalStore(filestore.ProposalStoreConfig{Root: cfg.ResolvedProposalRoot()})
	auditStore := filestore.NewAuditStore(filestore.AuditStoreConfig{Root: cfg.ResolvedAuditRoot()})

	engine := strategy.NewEngine(1024)
	for _, entry := range strategyCfg.Strategies {
		engine.Register(strategy.NewSMACrossover(entry.ID, entry.ID, entry.FastPeriod, entry.SlowPeriod, 14))
	}
	engine.OnSkipped = func(name string) { prom.StrategyCyclesSkippedTotal.Inc() }
	engine.OnError = func(name string, err error) { prom.ErrorsTotal.WithLabelValues("strategy").Inc() }

	session := timegate.DefaultUSEquitySession(cfg.Location(), timegate.NoHolidays{})

	notifier := notifierFromConfig(cfg)

	breakerMgr := &breaker.Manager{
		Events: ledgerStore,
		Thresholds: breaker.Thresholds{
			DailyLoss:     strategyCfg.Breaker.DailyLossThreshold,
			VIX:           strategyCfg.Breaker.VIXThreshold,
			Concentration: strategyCfg.Breaker.ConcentrationThreshold,
		},
		OnEvent: func(ev model.CircuitBreakerEvent) {
			if ev.BreakerType == model.BreakerDailyLoss {
				prom.SafetyHaltedTotal.Inc()
			}
			alert := notification.Alert{
				Level:      notification.AlertCritical,
				Title:      "circuit breaker tripped: " + string(ev.BreakerType),
				Message:    ev.Message,
				Source:     "circuit_breaker",
				StrategyID: ev.StrategyID,
			}
			if err := notifier.Send(ctx, alert); err != nil {
				log.Printf("[strategy] notifier send failed: %v", err)
			}
		},
	}

	pipeline := intent.Pipeline{
		Session:   &session,
		Allocator: intent.Allocator{},
		Breakers:  breakerMgr,
		BreakerContext: func(i model.AgentIntent) (string, string, string) {
			return "", "", i.StrategyName
		},
		BreakerInputs: func(ctx context.Context, i model.AgentIntent) breaker.Inputs {
			return breaker.Inputs{Now: time.Now().UTC()}
		},
		Price: func(ctx context.Context, symbol string) (float64, error) {
			return redisstore.LastClose(ctx, redisClient, redisstore.CandleStreamKey(fastestTFSeconds(cfg), symbol))
		},
		Emitter: intent.Emitter{
			Store:     auditStore,
			RepoID:    cfg.RepoID,
			AgentName: cfg.AgentName,
			AgentRole: cfg.AgentRole,
			AgentMode: cfg.AgentMode,
			GitSHA:    cfg.GitSHA,
		},
	}

	go func() {
		for intentVal := range engine.Intents() {
			prom.StrategyCyclesTotal.Inc()
			proposal, err := pipeline.Process(ctx, intentVal)
			if err != nil {
				if !intent.IsDropped(err) {
					prom.ErrorsTotal.WithLabelValues("strategy").Inc()
					log.Printf("[strategy] intent pipeline error: %v", err)
				}
				continue
			}
			prom.OrderProposalsTotal.Inc()
			if err := proposalStore.WriteProposal(ctx, *proposal); err != nil {
				log.Printf("[strategy] proposal store write failed: %v", err)
			}
		}
	}()

	// rawCh receives every candle XREADGROUP delivers; ring absorbs bursts
	// from Redis (many symbols/timeframes finalizing in the same tick)
	// without blocking the consumer-group ack loop, and candleCh is what
	// the strategy engine actually drains. A lock-free SPSC ring is the
	// right shape here: reader.Consume is the sole producer, the ring
	// pump below is the sole consumer.
	rawCh := make(chan model.Candle, 256)
	candleCh := make(chan model.Candle, 1024)
	ring := ringbuf.New[model.Candle](4096)
	go engine.Run(ctx, candleCh)
	go runRingPump(ctx, ring, rawCh, candleCh, prom)

	reader := redisstore.NewCandleStreamReader(redisClient, redisstore.CandleStreamReaderConfig{
		ConsumerGroup: "strategy",
		ConsumerName:  "strategy-1",
	})
	streamKeys := candleStreamKeysFor(strategyCfg, cfg)
	if err := reader.EnsureConsumerGroups(ctx, streamKeys); err != nil {
		log.Fatalf("[strategy] consumer group setup failed: %v", err)
	}

	go runFeeSplitDaily(ctx, ledgerStore)

	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	mux.Handle("/livez", safety.LivezHandler())
	httpSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("[strategy] http server listening on %s", cfg.MetricsAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[strategy] http server error: %v", err)
		}
	}()

	if err := reader.Consume(ctx, streamKeys, rawCh); err != nil {
		log.Printf("[strategy] candle stream consumer exited: %v", err)
	}
	close(rawCh)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	log.Println("[strategy] stopped")
}

// candleStreamKeysFor builds the candle:<tf>:<symbol> stream keys this
// process should consume, crossing the configured symbols with the
// configured timeframes.
func candleStreamKeysFor(strategyCfg *config.StrategyConfig, cfg *config.Config) []string {
	symbols := cfg.ParseSymbols()
	tfSeconds := cfg.ParseTFs()
	keys := make([]string, 0, len(symbols)*len(tfSeconds))
	for _, symbol := range symbols {
		for _, seconds := range tfSeconds {
			keys = append(keys, redisstore.CandleStreamKey(seconds, symbol))
		}
	}
	return keys
}

// fastestTFSeconds returns the smallest configured timeframe in seconds,
// the one intent.PriceLookup reads from since it updates most frequently.
func fastestTFSeconds(cfg *config.Config) int {
	tfs := cfg.ParseTFs()
	if len(tfs) == 0 {
		return 60
	}
	fastest := tfs[0]
	for _, s := range tfs[1:] {
		if s < fastest {
			fastest = s
		}
	}
	return fastest
}

// runFeeSplitDaily recomputes the monthly performance-fee snapshot once a
// day, per spec.md §4.7 / SPEC_FULL.md §12.2 — a low-frequency batch job
// riding alongside the strategy loop rather than its own process.
func runFeeSplitDaily(ctx context.Context, ledgerStore *sqlitestore.LedgerStore) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UTC()
			trades, err := ledgerAllTrades(ctx, ledgerStore)
			if err != nil {
				log.Printf("[strategy] feesplit: read trades failed: %v", err)
				continue
			}
			if _, err := feesplit.BuildMonthlySnapshots(trades, now.Year(), now.Month(), nil, now); err != nil {
				log.Printf("[strategy] feesplit: snapshot build failed: %v", err)
			}
		}
	}
}

// runRingPump bridges rawCh (written by the Redis consumer-group reader)
// to candleCh (read by the strategy engine) through a lock-free SPSC
// ring buffer: Push never blocks the Redis ack loop, and a dropped
// candle under sustained overload is logged and counted rather than
// stalling consumer-group acknowledgment. Closes candleCh once rawCh is
// closed and the ring has drained.
func runRingPump(ctx context.Context, ring *ringbuf.Ring[model.Candle], rawCh <-chan model.Candle, candleCh chan<- model.Candle, prom *metrics.Metrics) {
	defer close(candleCh)
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for {
		for {
			c, ok := ring.Pop()
			if !ok {
				break
			}
			select {
			case candleCh <- c:
			case <-ctx.Done():
				return
			}
		}
		select {
		case c, ok := <-rawCh:
			if !ok {
				for {
					c, ok := ring.Pop()
					if !ok {
						return
					}
					select {
					case candleCh <- c:
					case <-ctx.Done():
						return
					}
				}
			}
			if !ring.Push(c) {
				prom.ErrorsTotal.WithLabelValues("strategy-ringbuf-overflow").Inc()
				log.Printf("[strategy] ring buffer full (cap=%d), dropping candle %s/%s", ring.Cap(), c.Symbol, c.TFLabel)
			}
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// notifierFromConfig picks the richest configured alert backend: Telegram
// if both its credentials are set, else a generic webhook if a URL is
// set, else a log-only notifier so breaker trips are always visible
// somewhere even with no alerting configured.
func notifierFromConfig(cfg *config.Config) notification.Notifier {
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		return notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	}
	if cfg.NotifyWebhookURL != "" {
		return notification.NewWebhookNotifier(cfg.NotifyWebhookURL)
	}
	return notification.NewLogNotifier()
}

// ledgerAllTrades is a placeholder hook for wiring a group-enumeration
// query once the ledger store exposes one; until then the nightly
// feesplit job has nothing to scope its query key by, so it returns no
// trades rather than guessing a group.
func ledgerAllTrades(ctx context.Context, ledgerStore *sqlitestore.LedgerStore) ([]model.LedgerTrade, error) {
	_ = ledgerStore
	return nil, nil
}
