package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

func newTestLedgerStore(t *testing.T) *LedgerStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	store, err := NewLedgerStore(LedgerStoreConfig{DBPath: dbPath})
	if err != nil {
		t.Fatalf("unexpected error opening ledger store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func trade(tenant, uid, strategy, symbol string, side model.Side, ts time.Time, idx int) model.LedgerTrade {
	return model.LedgerTrade{
		TenantID: tenant, UID: uid, StrategyID: strategy, Symbol: symbol,
		Side: side, Qty: decimal.NewFromInt(10), Price: decimal.NewFromInt(100),
		Fees: decimal.NewFromInt(1), Slippage: decimal.Zero, TS: ts, Index: idx,
	}
}

func TestAppendAndReadTradesRoundTrip(t *testing.T) {
	store := newTestLedgerStore(t)
	ctx := context.Background()

	ts1 := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	t1 := trade("t1", "u1", "s1", "AAPL", model.SideBuy, ts1, 0)
	t2 := trade("t1", "u1", "s1", "AAPL", model.SideSell, ts2, 0)

	if err := store.AppendTrade(ctx, t1); err != nil {
		t.Fatalf("unexpected error appending trade: %v", err)
	}
	if err := store.AppendTrade(ctx, t2); err != nil {
		t.Fatalf("unexpected error appending trade: %v", err)
	}

	got, err := store.ReadTrades(ctx, t1.GroupKey(), nil, false)
	if err != nil {
		t.Fatalf("unexpected error reading trades: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 trades, got %d", len(got))
	}
	if !got[0].Qty.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected qty to round-trip as decimal, got %s", got[0].Qty)
	}
	if got[0].Side != model.SideBuy || got[1].Side != model.SideSell {
		t.Errorf("expected ascending ts order buy-then-sell, got %v, %v", got[0].Side, got[1].Side)
	}
}

func TestReadTradesFiltersByAsOfBoundary(t *testing.T) {
	store := newTestLedgerStore(t)
	ctx := context.Background()

	ts1 := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Minute)
	t1 := trade("t1", "u1", "s1", "AAPL", model.SideBuy, ts1, 0)
	t2 := trade("t1", "u1", "s1", "AAPL", model.SideSell, ts2, 0)
	_ = store.AppendTrade(ctx, t1)
	_ = store.AppendTrade(ctx, t2)

	asOf := ts2.UnixMilli()

	exclusive, err := store.ReadTrades(ctx, t1.GroupKey(), &asOf, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(exclusive) != 1 {
		t.Fatalf("expected 1 trade strictly before asOf, got %d", len(exclusive))
	}

	inclusive, err := store.ReadTrades(ctx, t1.GroupKey(), &asOf, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inclusive) != 2 {
		t.Fatalf("expected 2 trades at/before asOf inclusive, got %d", len(inclusive))
	}
}

func TestReadTradesScopesByGroupKey(t *testing.T) {
	store := newTestLedgerStore(t)
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)

	a := trade("t1", "u1", "s1", "AAPL", model.SideBuy, ts, 0)
	b := trade("t1", "u1", "s1", "MSFT", model.SideBuy, ts, 0)
	_ = store.AppendTrade(ctx, a)
	_ = store.AppendTrade(ctx, b)

	got, err := store.ReadTrades(ctx, a.GroupKey(), nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "AAPL" {
		t.Fatalf("expected only AAPL trades for this group key, got %+v", got)
	}
}

func TestAppendBreakerEventPersistsMetadata(t *testing.T) {
	store := newTestLedgerStore(t)
	ctx := context.Background()

	event := model.CircuitBreakerEvent{
		BreakerType: model.BreakerDailyLoss,
		TS:          time.Now().UTC(),
		UserID:      "u1",
		TenantID:    "t1",
		StrategyID:  "s1",
		Severity:    model.SeverityCritical,
		Message:     "daily loss limit breached",
		Metadata:    map[string]any{"realized_pct": -0.03},
	}
	if err := store.AppendBreakerEvent(ctx, event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var md string
	if err := store.db.QueryRowContext(ctx, "SELECT metadata FROM breaker_events").Scan(&md); err != nil {
		t.Fatalf("unexpected error reading breaker event: %v", err)
	}
	if !strings.Contains(md, "realized_pct") {
		t.Errorf("expected persisted metadata to contain realized_pct, got %q", md)
	}
}

func TestReadTradesRejectsMalformedGroupKey(t *testing.T) {
	store := newTestLedgerStore(t)
	if _, err := store.ReadTrades(context.Background(), "not-a-group-key", nil, false); err == nil {
		t.Fatalf("expected an error for a malformed group key")
	}
}
