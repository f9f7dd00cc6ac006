// Package feesplit implements spec §4.7's period P&L attribution and
// revenue-share fee splitting for strategies rented through the
// marketplace. Period realized P&L is always computed as a delta of
// cumulative as-of totals — never by summing fills inside the window
// directly — so a position opened before the period and closed during it
// is still attributed correctly.
package feesplit

import (
	"fmt"
	"strings"
	"time"

	"trading-systemv1/internal/ledger"
	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// Period is a half-open UTC window [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriodUTC returns the calendar-month period [start, end) in UTC
// for year/month (1-12).
func MonthPeriodUTC(year int, month time.Month) (Period, error) {
	if month < time.January || month > time.December {
		return Period{}, fmt.Errorf("feesplit: month must be 1..12, got %d", int(month))
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Period{Start: start, End: end}, nil
}

// GroupKey identifies a (tenant, uid, strategy) attribution partition —
// one level coarser than ledger.Compute's per-symbol group key, since a
// strategy's P&L is attributed across every symbol it traded.
type GroupKey struct {
	TenantID   string
	UID        string
	StrategyID string
}

func groupKeyFromLedgerKey(gk string) (GroupKey, string) {
	parts := strings.SplitN(gk, "|", 4)
	if len(parts) != 4 {
		return GroupKey{}, ""
	}
	return GroupKey{TenantID: parts[0], UID: parts[1], StrategyID: parts[2]}, parts[3]
}

// StrategyPeriodPnL is one (tenant,uid,strategy)'s P&L attribution for a
// period: realized figures are deltas across the period boundary;
// unrealized is the mark-to-market snapshot as of the period end.
type StrategyPeriodPnL struct {
	RealizedPnLGross decimal.Decimal
	RealizedFees     decimal.Decimal
	RealizedPnLNet   decimal.Decimal
	UnrealizedPnL    decimal.Decimal
}

func sumRealizedByGroup(groups map[string]model.GroupAggregate) map[GroupKey]StrategyPeriodPnL {
	out := make(map[GroupKey]StrategyPeriodPnL, len(groups))
	for gk, g := range groups {
		key, _ := groupKeyFromLedgerKey(gk)
		acc := out[key]
		acc.RealizedPnLGross = acc.RealizedPnLGross.Add(g.RealizedGross)
		acc.RealizedFees = acc.RealizedFees.Add(g.RealizedFees)
		acc.RealizedPnLNet = acc.RealizedPnLNet.Add(g.Realized)
		out[key] = acc
	}
	return out
}

func sumUnrealizedByGroup(groups map[string]model.GroupAggregate) map[GroupKey]decimal.Decimal {
	out := make(map[GroupKey]decimal.Decimal, len(groups))
	for gk, g := range groups {
		key, _ := groupKeyFromLedgerKey(gk)
		out[key] = out[key].Add(g.Unrealized)
	}
	return out
}

// ComputeStrategyPnLForPeriod attributes realized P&L to period as the
// delta realized_totals(as_of=end,exclusive) - realized_totals(as_of=start,exclusive),
// per spec §4.7, and reports unrealized P&L as of period.End using
// markPrices (symbol -> last price).
func ComputeStrategyPnLForPeriod(trades []model.LedgerTrade, period Period, markPrices map[string]decimal.Decimal) (map[GroupKey]StrategyPeriodPnL, error) {
	if !period.End.After(period.Start) {
		return nil, fmt.Errorf("feesplit: period end must be after start")
	}

	startResult, err := ledger.Compute(trades, ledger.Config{}, &period.Start, false, nil)
	if err != nil {
		return nil, fmt.Errorf("feesplit: as-of start: %w", err)
	}
	endResult, err := ledger.Compute(trades, ledger.Config{}, &period.End, false, markPrices)
	if err != nil {
		return nil, fmt.Errorf("feesplit: as-of end: %w", err)
	}

	realizedStart := sumRealizedByGroup(startResult.Groups)
	realizedEnd := sumRealizedByGroup(endResult.Groups)
	unrealizedEnd := sumUnrealizedByGroup(endResult.Groups)

	keys := make(map[GroupKey]struct{})
	for k := range realizedStart {
		keys[k] = struct{}{}
	}
	for k := range realizedEnd {
		keys[k] = struct{}{}
	}

	out := make(map[GroupKey]StrategyPeriodPnL, len(keys))
	for k := range keys {
		s := realizedStart[k]
		e := realizedEnd[k]
		out[k] = StrategyPeriodPnL{
			RealizedPnLGross: e.RealizedPnLGross.Sub(s.RealizedPnLGross),
			RealizedFees:     e.RealizedFees.Sub(s.RealizedFees),
			RealizedPnLNet:   e.RealizedPnLNet.Sub(s.RealizedPnLNet),
			UnrealizedPnL:    unrealizedEnd[k],
		}
	}
	return out, nil
}
