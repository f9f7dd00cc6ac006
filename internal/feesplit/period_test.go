package feesplit

import (
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

func fill(ts time.Time, symbol string, side model.Side, qty, price, fees string) model.LedgerTrade {
	return model.LedgerTrade{
		TenantID: "t1", UID: "u1", StrategyID: "s1",
		Symbol: symbol, Side: side, Qty: d(qty), Price: d(price), Fees: d(fees),
		TS: ts,
	}
}

func TestMonthPeriodUTCSpansCalendarMonth(t *testing.T) {
	p, err := MonthPeriodUTC(2026, time.February)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Start != time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected start: %v", p.Start)
	}
	if p.End != time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("unexpected end: %v", p.End)
	}
}

func TestMonthPeriodUTCRejectsInvalidMonth(t *testing.T) {
	if _, err := MonthPeriodUTC(2026, time.Month(13)); err == nil {
		t.Fatalf("expected an error for month 13")
	}
}

func TestComputeStrategyPnLForPeriodAttributesPositionOpenedBeforePeriod(t *testing.T) {
	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) // opened in January
	feb := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC) // closed in February

	trades := []model.LedgerTrade{
		fill(jan, "AAPL", model.SideBuy, "100", "100", "0"),
		fill(feb, "AAPL", model.SideSell, "100", "110", "0"),
	}

	period, err := MonthPeriodUTC(2026, time.February)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pnl, err := ComputeStrategyPnLForPeriod(trades, period, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := GroupKey{TenantID: "t1", UID: "u1", StrategyID: "s1"}
	got, ok := pnl[key]
	if !ok {
		t.Fatalf("expected a P&L entry for %+v, got %+v", key, pnl)
	}
	want := d("1000") // (110-100) * 100, realized entirely within February
	if !got.RealizedPnLNet.Equal(want) {
		t.Errorf("expected realized_pnl_net %s, got %s", want, got.RealizedPnLNet)
	}
}

func TestComputeStrategyPnLForPeriodExcludesTradesOutsidePeriod(t *testing.T) {
	jan := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	trades := []model.LedgerTrade{
		fill(jan, "AAPL", model.SideBuy, "100", "100", "0"),
		fill(jan.Add(time.Hour), "AAPL", model.SideSell, "100", "110", "0"),
	}

	period, err := MonthPeriodUTC(2026, time.February)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pnl, err := ComputeStrategyPnLForPeriod(trades, period, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	key := GroupKey{TenantID: "t1", UID: "u1", StrategyID: "s1"}
	got := pnl[key]
	if !got.RealizedPnLNet.IsZero() {
		t.Fatalf("expected zero realized delta for trades entirely before the period, got %s", got.RealizedPnLNet)
	}
}

func TestComputeStrategyPnLForPeriodRejectsEmptyOrBackwardsWindow(t *testing.T) {
	_, err := ComputeStrategyPnLForPeriod(nil, Period{Start: time.Now(), End: time.Now()}, nil)
	if err == nil {
		t.Fatalf("expected an error for a non-positive period")
	}
}

func TestMonthlySnapshotIDFormat(t *testing.T) {
	id, err := MonthlySnapshotID("uid_123", "strat_abc", 2025, time.December)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "uid_123__strat_abc__2025-12"
	if id != want {
		t.Errorf("expected %q, got %q", want, id)
	}
}

func TestMonthlySnapshotIDRejectsMissingFields(t *testing.T) {
	if _, err := MonthlySnapshotID("", "strat_abc", 2025, time.December); err == nil {
		t.Fatalf("expected an error for missing uid")
	}
	if _, err := MonthlySnapshotID("uid_123", "", 2025, time.December); err == nil {
		t.Fatalf("expected an error for missing strategy_id")
	}
}

func TestBuildMonthlySnapshotsKeyedByDeterministicID(t *testing.T) {
	feb := time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)
	trades := []model.LedgerTrade{
		fill(feb, "AAPL", model.SideBuy, "10", "100", "0"),
		fill(feb.Add(time.Hour), "AAPL", model.SideSell, "10", "105", "0"),
	}
	computedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	snaps, err := BuildMonthlySnapshots(trades, 2026, time.February, nil, computedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, ok := snaps["u1__s1__2026-02"]
	if !ok {
		t.Fatalf("expected snapshot keyed by u1__s1__2026-02, got keys %v", keysOf(snaps))
	}
	if !snap.RealizedPnL.Equal(d("50")) {
		t.Errorf("expected realized pnl 50, got %s", snap.RealizedPnL)
	}
	if snap.ComputedAtUTC != computedAt {
		t.Errorf("expected computed_at to be passed through unchanged")
	}
}

func keysOf(m map[string]StrategyPerformanceSnapshot) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
