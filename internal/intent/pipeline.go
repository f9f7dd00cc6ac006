package intent

import (
	"context"
	"fmt"
	"time"

	"trading-systemv1/internal/breaker"
	"trading-systemv1/internal/model"
	"trading-systemv1/internal/timegate"

	"github.com/google/uuid"
)

// PriceLookup resolves the last known price for symbol, used both for
// sizing (Allocator.Allocate) and for converting a breaker-adjusted
// allocation back into a share quantity.
type PriceLookup func(ctx context.Context, symbol string) (float64, error)

// BreakerContext resolves the (tenant, user, strategy) identifiers a
// model.AgentIntent doesn't itself carry, needed to build a breaker.Signal.
type BreakerContext func(i model.AgentIntent) (tenantID, userID, strategyID string)

// BreakerInputs resolves the trades/equity/VIX/position data the risk
// circuit breakers need to evaluate a signal derived from i.
type BreakerInputs func(ctx context.Context, i model.AgentIntent) breaker.Inputs

// Pipeline is the end-to-end assembly spec §4.6-§4.7 describes: a
// finalized candle's strategy intent is time-gated, sized, risk-checked,
// and finally emitted as a sized model.OrderProposal (or dropped, with the
// drop reason always recorded via Emitter so the decision is auditable
// either way).
type Pipeline struct {
	Session  *timegate.Session // nil disables the entry/flatten-window gate
	Allocator Allocator
	Gate     StrategyLimitGate // nil disables the per-strategy notional gate

	Breakers        *breaker.Manager // nil disables the risk circuit breakers
	BreakerContext  BreakerContext
	BreakerInputs   BreakerInputs

	Price   PriceLookup
	Emitter Emitter
}

// dropped records why an intent did not reach a proposal, for both the
// caller and the audit trail (the intent itself is always emitted,
// win or lose, so a reviewer can reconstruct every decision later).
type dropped struct {
	reason string
}

func (d dropped) Error() string { return fmt.Sprintf("intent dropped: %s", d.reason) }

// IsDropped reports whether err represents a routine drop (gated, sized
// to zero, breaker-blocked) rather than a hard failure (e.g. a price
// lookup error).
func IsDropped(err error) bool {
	_, ok := err.(dropped)
	return ok
}

// Process runs i through the time gate, allocator, and risk breakers in
// order, returning a sized OrderProposal on success. A routine drop (gate
// closed, zero allocation, breaker HOLD) is reported via a dropped error
// (see IsDropped); any other error is an operational failure (e.g. price
// lookup). i is emitted to the audit trail exactly once, regardless of
// outcome, and brackets a started/success-or-failure pair of §4.8
// IntentLogRecords around the whole attempt so duration_ms and outcome
// are always known.
func (p Pipeline) Process(ctx context.Context, i model.AgentIntent) (result *model.OrderProposal, resultErr error) {
	p.Emitter.Emit(ctx, i)

	traceID := uuid.NewString()
	start := time.Now().UTC()
	p.Emitter.EmitLifecycle(i, traceID, OutcomeStarted, "pipeline processing started", nil)

	defer func() {
		durationMS := time.Since(start).Milliseconds()
		outcome := OutcomeSuccess
		summary := "order proposal sized"
		if resultErr != nil {
			outcome = OutcomeFailure
			summary = resultErr.Error()
		}
		p.Emitter.EmitLifecycle(i, traceID, outcome, summary, &durationMS)
	}()

	now := i.CreatedAtUTC
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if p.Session != nil {
		gated := i.Kind == model.KindExit
		inWindow := p.Session.InEntryWindow(now) || (gated && p.Session.InFlattenWindow(now))
		if !inWindow {
			return nil, dropped{reason: "outside_trading_window"}
		}
	}

	if p.Price == nil {
		return nil, fmt.Errorf("intent pipeline: no PriceLookup configured")
	}
	price, err := p.Price(ctx, i.Symbol)
	if err != nil {
		return nil, fmt.Errorf("intent pipeline: price lookup for %s: %w", i.Symbol, err)
	}

	alloc, err := p.Allocator.Allocate(ctx, i, price, p.Gate)
	if err != nil {
		return nil, fmt.Errorf("intent pipeline: allocate: %w", err)
	}
	if !alloc.Allowed {
		return nil, dropped{reason: alloc.Reason}
	}

	if p.Breakers != nil {
		sig, in := p.buildSignal(ctx, i, alloc)
		sig, _ = p.Breakers.Evaluate(ctx, sig, in)

		if sig.Action == "HOLD" {
			return nil, dropped{reason: "circuit_breaker_blocked"}
		}
		if sig.Allocation != alloc.NotionalUSD && price > 0 {
			alloc.NotionalUSD = sig.Allocation
			alloc.Qty = sig.Allocation / price
		}
		if alloc.Qty <= 0 {
			return nil, dropped{reason: "circuit_breaker_blocked"}
		}
	}

	proposal, err := Propose(i, alloc, i.Constraints.LimitPrice)
	if err != nil {
		return nil, fmt.Errorf("intent pipeline: propose: %w", err)
	}
	return &proposal, nil
}

func (p Pipeline) buildSignal(ctx context.Context, i model.AgentIntent, alloc Allocation) (breaker.Signal, breaker.Inputs) {
	action := string(i.Side)

	var tenantID, userID, strategyID string
	if p.BreakerContext != nil {
		tenantID, userID, strategyID = p.BreakerContext(i)
	}
	if strategyID == "" {
		strategyID = i.StrategyName
	}

	sig := breaker.Signal{
		TenantID:   tenantID,
		UserID:     userID,
		StrategyID: strategyID,
		Symbol:     i.Symbol,
		Action:     action,
		Allocation: alloc.NotionalUSD,
	}

	var in breaker.Inputs
	if p.BreakerInputs != nil {
		in = p.BreakerInputs(ctx, i)
	}
	return sig, in
}
