// Package marketdata wires the C5 pipeline from spec §4.4: Stream ->
// TickFilter -> (optional clamp) -> per-tick freshness mark ->
// CandleAggregator -> CandleStore, with a heartbeat writer running
// alongside.
package marketdata

import (
	"context"
	"log"
	"time"

	"trading-systemv1/internal/aggregator"
	"trading-systemv1/internal/marketdata/filter"
	"trading-systemv1/internal/marketdata/heartbeat"
	"trading-systemv1/internal/marketdata/stream"
	"trading-systemv1/internal/model"
)

// PipelineConfig assembles the component configs needed to run a single
// stream's full ingest-to-store path.
type PipelineConfig struct {
	ServiceID        string
	Source           stream.Source
	StreamConfig     stream.Config
	FilterConfig     filter.Config
	AggregatorConfig aggregator.Config
	CandleStore      model.CandleStore
	TickStore        model.TickStore
	ActivityStore    model.ActivityStore

	// OnTicksReceived, OnTicksDropped, OnReconnect are optional metrics
	// hooks; all are nil-checked before calling.
	OnTicksReceived func()
	OnTicksDropped  func()
	OnReconnect     func()
	OnParseError    func(err error)
}

// Pipeline runs the full C5 path: a Runner over Source feeding a Filter
// feeding an Aggregator, with a heartbeat.Writer reporting liveness and an
// ActivityStore marking marketdata freshness for internal/safety.
type Pipeline struct {
	cfg    PipelineConfig
	runner *stream.Runner
	filt   *filter.Filter
	agg    *aggregator.Aggregator
}

// NewPipeline builds a Pipeline from cfg.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	cfg.StreamConfig.OnDrop = func(t model.Tick) {
		if cfg.OnTicksDropped != nil {
			cfg.OnTicksDropped()
		}
	}
	cfg.StreamConfig.OnReconnect = func(attempt int, delay time.Duration) {
		if cfg.OnReconnect != nil {
			cfg.OnReconnect()
		}
		log.Printf("[marketdata] %s reconnecting: attempt=%d delay=%s", cfg.ServiceID, attempt, delay)
	}

	agg := aggregator.New(cfg.AggregatorConfig)
	agg.OnParseError = cfg.OnParseError

	return &Pipeline{
		cfg:    cfg,
		runner: stream.New(cfg.Source, cfg.StreamConfig),
		filt:   filter.New(cfg.FilterConfig),
		agg:    agg,
	}
}

// Run blocks until ctx is cancelled or the stream's reconnect loop gives up
// past its max retry window.
func (p *Pipeline) Run(ctx context.Context) error {
	rawCh := make(chan model.Tick, 1024)
	candleCh := make(chan model.Candle, 1024)

	var hbWriter *heartbeat.Writer
	if p.cfg.ActivityStore != nil {
		hbWriter = &heartbeat.Writer{
			ServiceID: p.cfg.ServiceID,
			Store:     p.cfg.ActivityStore,
		}
		go hbWriter.Run(ctx)
	}

	go p.agg.Run(ctx, rawCh, candleCh)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-candleCh:
				if !ok {
					return
				}
				if p.cfg.CandleStore != nil {
					if err := p.cfg.CandleStore.WriteCandle(ctx, c); err != nil {
						log.Printf("[marketdata] candle store write failed: %v", err)
					}
				}
			}
		}
	}()

	sourceCh := make(chan model.Tick, p.cfg.StreamConfig.QueueSize)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-sourceCh:
				if !ok {
					return
				}
				if p.cfg.OnTicksReceived != nil {
					p.cfg.OnTicksReceived()
				}
				if p.cfg.TickStore != nil {
					if err := p.cfg.TickStore.WriteTick(ctx, t); err != nil {
						log.Printf("[marketdata] tick store write failed: %v", err)
					}
				}
				if out, keep := p.filt.Apply(t); keep {
					if p.cfg.ActivityStore != nil {
						if err := p.cfg.ActivityStore.WriteMarketdataActivity(ctx, out); err != nil {
							log.Printf("[marketdata] activity mark failed: %v", err)
						}
					}
					select {
					case rawCh <- out:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return p.runner.Run(ctx, sourceCh)
}
