// Package strategy provides the strategy engine for running trading
// strategies. A Strategy receives finalized candles and emits capital-free
// model.AgentIntent values (never quantity or notional, per spec §4.6) —
// sizing is the allocator's job, not the strategy's.
package strategy

import (
	"context"
	"log"

	"trading-systemv1/internal/model"
)

// Strategy is the interface all trading strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnCandle is called for each finalized candle on a timeframe this
	// strategy subscribes to. Returning (nil, nil) means "no opinion this
	// bar" — not every candle needs to produce an intent.
	OnCandle(candle model.Candle) (*model.AgentIntent, error)

	// OnTick is called for each raw tick (optional, can be a no-op).
	OnTick(tick model.Tick)
}

// Engine routes finalized candles to registered strategies and collects
// the AgentIntents they emit.
type Engine struct {
	strategies []Strategy
	intentCh   chan model.AgentIntent

	// OnSkipped counts a cycle where a strategy ran but produced no
	// intent — wired to the strategy_cycles_skipped_total metric.
	OnSkipped func(strategyName string)
	// OnError is called when a strategy's OnCandle returns an error
	// (e.g. NewAgentIntent validation failure) — a bug in the strategy
	// must not crash the engine or silently drop the cycle unnoticed.
	OnError func(strategyName string, err error)
}

// NewEngine creates a new strategy engine with the given intent channel
// buffer size.
func NewEngine(intentBufferSize int) *Engine {
	return &Engine{
		intentCh: make(chan model.AgentIntent, intentBufferSize),
	}
}

// Register adds a strategy to the engine.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Intents returns the channel of AgentIntents emitted by strategies.
func (e *Engine) Intents() <-chan model.AgentIntent {
	return e.intentCh
}

// Run consumes candles and routes finalized ones to all registered
// strategies. Blocks until ctx is cancelled or candleCh is closed.
func (e *Engine) Run(ctx context.Context, candleCh <-chan model.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-candleCh:
			if !ok {
				return
			}
			if !candle.IsFinal {
				continue
			}
			e.dispatch(candle)
		}
	}
}

func (e *Engine) dispatch(candle model.Candle) {
	for _, s := range e.strategies {
		intent, err := s.OnCandle(candle)
		if err != nil {
			if e.OnError != nil {
				e.OnError(s.Name(), err)
			} else {
				log.Printf("[strategy] %s: OnCandle error: %v", s.Name(), err)
			}
			continue
		}
		if intent == nil {
			if e.OnSkipped != nil {
				e.OnSkipped(s.Name())
			}
			continue
		}
		select {
		case e.intentCh <- *intent:
		default:
			log.Printf("[strategy] %s: intent channel full, dropping intent %s", s.Name(), intent.IntentID)
		}
	}
}
