package feesplit

import (
	"fmt"
	"time"

	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// MonthlySnapshotID builds the deterministic monthly performance snapshot
// id `{uid}__{strategy_id}__{YYYY}-{MM}`, per spec §4.7.
func MonthlySnapshotID(uid, strategyID string, year int, month time.Month) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("feesplit: uid is required")
	}
	if strategyID == "" {
		return "", fmt.Errorf("feesplit: strategy_id is required")
	}
	if month < time.January || month > time.December {
		return "", fmt.Errorf("feesplit: month must be 1..12, got %d", int(month))
	}
	return fmt.Sprintf("%s__%s__%04d-%02d", uid, strategyID, year, int(month)), nil
}

// StrategyPerformanceSnapshot is the persisted monthly performance record
// for one (tenant,uid,strategy), keyed by MonthlySnapshotID.
type StrategyPerformanceSnapshot struct {
	SnapshotID    string
	TenantID      string
	UID           string
	StrategyID    string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	RealizedPnL   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	ComputedAtUTC time.Time
}

// BuildMonthlySnapshots computes every (tenant,uid,strategy) present in
// trades as of the given month and returns them keyed by snapshot id. The
// caller supplies markPrices for unrealized P&L and a computedAt
// timestamp (not stamped internally, to keep this function
// deterministic/testable).
func BuildMonthlySnapshots(trades []model.LedgerTrade, year int, month time.Month, markPrices map[string]decimal.Decimal, computedAtUTC time.Time) (map[string]StrategyPerformanceSnapshot, error) {
	period, err := MonthPeriodUTC(year, month)
	if err != nil {
		return nil, err
	}
	pnlByKey, err := ComputeStrategyPnLForPeriod(trades, period, markPrices)
	if err != nil {
		return nil, err
	}

	out := make(map[string]StrategyPerformanceSnapshot, len(pnlByKey))
	for key, pnl := range pnlByKey {
		id, err := MonthlySnapshotID(key.UID, key.StrategyID, year, month)
		if err != nil {
			return nil, err
		}
		out[id] = StrategyPerformanceSnapshot{
			SnapshotID:    id,
			TenantID:      key.TenantID,
			UID:           key.UID,
			StrategyID:    key.StrategyID,
			PeriodStart:   period.Start,
			PeriodEnd:     period.End,
			RealizedPnL:   pnl.RealizedPnLNet,
			UnrealizedPnL: pnl.UnrealizedPnL,
			ComputedAtUTC: computedAtUTC,
		}
	}
	return out, nil
}
