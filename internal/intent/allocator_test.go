package intent

import (
	"context"
	"testing"

	"trading-systemv1/internal/model"
)

func baseIntent(side model.IntentSide, kind model.IntentKind) model.AgentIntent {
	i, err := model.NewAgentIntent(model.AgentIntent{
		IntentID:  "i1",
		Symbol:    "AAPL",
		AssetType: model.AssetEquity,
		Kind:      kind,
		Side:      side,
		Rationale: model.Rationale{ShortReason: "test"},
		Constraints: model.Constraints{
			RequiresHumanApproval: true,
		},
	})
	if err != nil {
		panic(err)
	}
	return i
}

func TestAllocateFlatIntentDisallowed(t *testing.T) {
	a := Allocator{}
	alloc, err := a.Allocate(context.Background(), baseIntent(model.SideFlat, model.KindExit), 100, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Allowed || alloc.Reason != "flat_intent" {
		t.Fatalf("expected flat_intent disallowed, got %+v", alloc)
	}
}

func TestAllocateDirectionalDefaultsToOneUnit(t *testing.T) {
	t.Setenv(DefaultQtyEnv, "")
	a := Allocator{}
	alloc, err := a.Allocate(context.Background(), baseIntent(model.SideBuyIntent, model.KindDirectional), 150, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !alloc.Allowed || alloc.Qty != 1 || alloc.NotionalUSD != 150 {
		t.Fatalf("expected qty=1 notional=150, got %+v", alloc)
	}
}

func TestAllocateDeltaHedgeRoundsQty(t *testing.T) {
	delta := -12.6
	i := baseIntent(model.SideSellIntent, model.KindDeltaHedge)
	i.Constraints.DeltaToHedge = &delta

	a := Allocator{}
	alloc, err := a.Allocate(context.Background(), i, 10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Qty != 13 {
		t.Fatalf("expected qty rounded to 13, got %v", alloc.Qty)
	}
}

func TestAllocateStrategyLimitGateBlocks(t *testing.T) {
	a := Allocator{}
	gate := func(ctx context.Context, strategyID string, notional float64) (bool, error) {
		return false, nil
	}
	alloc, err := a.Allocate(context.Background(), baseIntent(model.SideBuyIntent, model.KindDirectional), 100, gate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.Allowed || alloc.Reason != "strategy_limits_blocked" {
		t.Fatalf("expected strategy_limits_blocked, got %+v", alloc)
	}
}

func TestProposeRejectsDisallowedAllocation(t *testing.T) {
	_, err := Propose(baseIntent(model.SideBuyIntent, model.KindDirectional), Allocation{Allowed: false}, nil)
	if err == nil {
		t.Fatalf("expected error building a proposal from a disallowed allocation")
	}
}

func TestProposeBuildsValidProposal(t *testing.T) {
	p, err := Propose(baseIntent(model.SideBuyIntent, model.KindDirectional), Allocation{Allowed: true, Qty: 1, NotionalUSD: 100}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Quantity != 1 {
		t.Fatalf("expected quantity 1, got %v", p.Quantity)
	}
}
