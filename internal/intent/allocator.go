// Package intent implements spec §4.6's capital-bearing half of the
// strategy pipeline: the allocator that converts a capital-free
// model.AgentIntent into a sized model.OrderProposal, and the audit
// writer that persists intents with their indicator rationale redacted.
package intent

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"

	"trading-systemv1/internal/model"
)

// DefaultQtyEnv mirrors the original allocator's ALLOCATOR_DEFAULT_QTY
// override for DIRECTIONAL/EXIT sizing.
const DefaultQtyEnv = "ALLOCATOR_DEFAULT_QTY"

// Allocation is the allocator's output — the only place a quantity or
// notional value may legally originate, per spec §4.6.
type Allocation struct {
	Allowed     bool
	Reason      string
	Qty         float64
	NotionalUSD float64
}

// StrategyLimitGate evaluates whether a strategy may place a trade of the
// given notional, typically backed by a persistent daily
// notional ledger. Returning an error is treated as "not allowed" —
// the allocator fails closed on a gate it cannot evaluate.
type StrategyLimitGate func(ctx context.Context, strategyID string, notional float64) (bool, error)

// Allocator converts intents into sized allocations.
type Allocator struct{}

func defaultQty() float64 {
	if raw := os.Getenv(DefaultQtyEnv); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			return v
		}
	}
	return 1.0
}

// sizeIntent converts an intent's kind into a raw quantity, independent of
// any strategy-limit gate: DIRECTIONAL/EXIT default to 1 unit (or the env
// override); DELTA_HEDGE rounds |delta_to_hedge| to the nearest whole
// share.
func sizeIntent(i model.AgentIntent) float64 {
	if i.Kind == model.KindDeltaHedge {
		if i.Constraints.DeltaToHedge == nil {
			return 0
		}
		return math.Round(math.Abs(*i.Constraints.DeltaToHedge))
	}
	return math.Max(0, defaultQty())
}

// Allocate sizes i against lastPrice, optionally gating on notional via
// gate (nil skips the gate entirely). FLAT intents are never sized — they
// return {allowed:false, reason:"flat_intent"} per spec §4.6.
func (a Allocator) Allocate(ctx context.Context, i model.AgentIntent, lastPrice float64, gate StrategyLimitGate) (Allocation, error) {
	if i.Side == model.SideFlat {
		return Allocation{Allowed: false, Reason: "flat_intent"}, nil
	}

	qty := sizeIntent(i)
	notional := math.Max(0, lastPrice*qty)

	if gate != nil {
		allowed, err := gate(ctx, i.StrategyName, notional)
		if err != nil || !allowed {
			return Allocation{Allowed: false, Reason: "strategy_limits_blocked", Qty: 0, NotionalUSD: 0}, nil
		}
	}

	return Allocation{Allowed: true, Reason: "ok", Qty: qty, NotionalUSD: notional}, nil
}

// Propose converts an allowed Allocation into an OrderProposal. FLAT
// intents and disallowed allocations never reach this constructor — the
// allocator's caller must check Allocation.Allowed first.
func Propose(i model.AgentIntent, alloc Allocation, limitPrice *float64) (model.OrderProposal, error) {
	if !alloc.Allowed {
		return model.OrderProposal{}, fmt.Errorf("intent: cannot build a proposal from a disallowed allocation (%s)", alloc.Reason)
	}
	p := model.OrderProposal{
		Intent:     i,
		Quantity:   alloc.Qty,
		LimitPrice: limitPrice,
	}
	if err := p.Validate(); err != nil {
		return model.OrderProposal{}, err
	}
	return p, nil
}
