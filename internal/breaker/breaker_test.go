package breaker

import (
	"context"
	"testing"
	"time"

	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func trade(symbol string, side model.Side, qty, price string, ts time.Time) model.LedgerTrade {
	return model.LedgerTrade{
		TenantID: "t1", UID: "u1", StrategyID: "s1",
		Symbol: symbol, Side: side, Qty: d(qty), Price: d(price),
		TS: ts, Fees: d("0"),
	}
}

func TestDailyLossBreakerTriggersShadowMode(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	trades := []model.LedgerTrade{
		trade("AAPL", model.SideBuy, "100", "100", midnight.Add(time.Hour)),
		trade("AAPL", model.SideSell, "100", "95", midnight.Add(2*time.Hour)),
	}

	registry := NewInMemoryShadowModeRegistry()
	m := &Manager{Registry: registry}

	sig := Signal{TenantID: "t1", UserID: "u1", StrategyID: "s1", Symbol: "AAPL", Action: "BUY"}
	out, events := m.Evaluate(context.Background(), sig, Inputs{
		Trades:         trades,
		StartingEquity: 10000,
		Now:            now,
	})

	if out.Action != "HOLD" {
		t.Fatalf("expected signal forced to HOLD, got %q", out.Action)
	}
	if len(events) != 1 || events[0].BreakerType != model.BreakerDailyLoss {
		t.Fatalf("expected exactly one daily-loss event, got %+v", events)
	}
	if _, inShadow := registry.IsShadowMode("t1", "u1"); !inShadow {
		t.Errorf("expected user to be switched to shadow mode")
	}
}

func TestDailyLossBreakerShortCircuitsRemainingBreakers(t *testing.T) {
	now := time.Date(2026, 7, 31, 15, 0, 0, 0, time.UTC)
	midnight := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	trades := []model.LedgerTrade{
		trade("AAPL", model.SideBuy, "100", "100", midnight.Add(time.Hour)),
		trade("AAPL", model.SideSell, "100", "50", midnight.Add(2*time.Hour)),
	}

	m := &Manager{Registry: NewInMemoryShadowModeRegistry()}
	sig := Signal{TenantID: "t1", UserID: "u1", Symbol: "AAPL", Action: "BUY", Allocation: 1000}
	_, events := m.Evaluate(context.Background(), sig, Inputs{
		Trades:              trades,
		StartingEquity:      10000,
		Now:                 now,
		VIX:                 50,
		VIXAvailable:        true,
		TotalPortfolioValue: 10000,
		Positions:           map[string]Position{"AAPL": {Qty: 100, CurrentPrice: 50}},
	})
	if len(events) != 1 {
		t.Fatalf("expected daily-loss breach to short-circuit VIX/concentration checks, got %d events", len(events))
	}
}

func TestVIXGuardHalvesAllocation(t *testing.T) {
	m := &Manager{}
	sig := Signal{Action: "BUY", Allocation: 1000}
	out, events := m.Evaluate(context.Background(), sig, Inputs{VIX: 35, VIXAvailable: true})
	if out.Allocation != 500 {
		t.Fatalf("expected allocation halved to 500, got %v", out.Allocation)
	}
	if len(events) != 1 || events[0].BreakerType != model.BreakerVIXGuard {
		t.Fatalf("expected one VIX guard event, got %+v", events)
	}
}

func TestVIXGuardNoOpBelowThreshold(t *testing.T) {
	m := &Manager{}
	sig := Signal{Action: "BUY", Allocation: 1000}
	out, events := m.Evaluate(context.Background(), sig, Inputs{VIX: 20, VIXAvailable: true})
	if out.Allocation != 1000 || len(events) != 0 {
		t.Fatalf("expected no change below VIX threshold, got alloc=%v events=%v", out.Allocation, events)
	}
}

func TestConcentrationDowngradesToHold(t *testing.T) {
	m := &Manager{}
	sig := Signal{Symbol: "AAPL", Action: "BUY"}
	out, events := m.Evaluate(context.Background(), sig, Inputs{
		TotalPortfolioValue: 1000,
		Positions:           map[string]Position{"AAPL": {Qty: 10, CurrentPrice: 30}}, // 30% concentration
	})
	if out.Action != "HOLD" {
		t.Fatalf("expected BUY downgraded to HOLD, got %q", out.Action)
	}
	if len(events) != 1 || events[0].BreakerType != model.BreakerConcentration {
		t.Fatalf("expected one concentration event, got %+v", events)
	}
}

func TestConcentrationIgnoresNonBuy(t *testing.T) {
	m := &Manager{}
	sig := Signal{Symbol: "AAPL", Action: "SELL"}
	out, events := m.Evaluate(context.Background(), sig, Inputs{
		TotalPortfolioValue: 1000,
		Positions:           map[string]Position{"AAPL": {Qty: 10, CurrentPrice: 30}},
	})
	if out.Action != "SELL" || len(events) != 0 {
		t.Fatalf("expected SELL untouched, got %q events=%v", out.Action, events)
	}
}

func TestEventsAccumulateMessagesOnSignal(t *testing.T) {
	m := &Manager{}
	sig := Signal{Symbol: "AAPL", Action: "BUY", Allocation: 1000}
	out, _ := m.Evaluate(context.Background(), sig, Inputs{
		VIX: 40, VIXAvailable: true,
		TotalPortfolioValue: 1000,
		Positions:           map[string]Position{"AAPL": {Qty: 10, CurrentPrice: 30}},
	})
	if len(out.CircuitBreakerMessages) != 2 {
		t.Fatalf("expected both VIX and concentration messages recorded, got %v", out.CircuitBreakerMessages)
	}
}
