// Package ledger implements the FIFO lot-matching P&L engine over an
// append-only fill ledger (spec §4.2). It is a pure function of its input
// fills — no mutation of LedgerTrade, no hidden state between calls — so
// callers can recompute from scratch or incrementally by varying the as-of
// cutoff.
package ledger

import (
	"fmt"
	"sort"
	"time"

	"trading-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// Config configures option-contract multiplier overrides keyed by
// underlying symbol (e.g. non-standard "mini" contracts). Underlyings not
// present here use DefaultOptionMultiplier.
type Config struct {
	OptionMultiplierOverrides map[string]decimal.Decimal
}

// Result is the full output of Compute: per-fill attribution in processing
// order, and a per-group (tenant,uid,strategy,symbol) aggregate.
type Result struct {
	Fills  []model.FillAttribution
	Groups map[string]model.GroupAggregate
}

type groupState struct {
	longs  []model.Lot
	shorts []model.Lot
	realizedGross decimal.Decimal
	realizedFees  decimal.Decimal
}

// Compute runs FIFO lot matching over trades and returns realized P&L, open
// lots, and per-fill attribution. trades need not be pre-sorted — Compute
// applies the deterministic sort (ts, broker_fill_id, order_id, index) from
// spec §4.2 itself.
//
// asOf/inclusive implement the as-of cutoff: when asOf is non-nil, trades
// with ts after the cutoff (or ts >= cutoff when !inclusive) are excluded
// entirely from the computation, matching the semantics used for period
// attribution (see internal/feesplit).
//
// marks supplies a mark price per symbol for unrealized P&L; symbols
// without a mark get unrealized_pnl=0 for their open lots.
func Compute(trades []model.LedgerTrade, cfg Config, asOf *time.Time, inclusive bool, marks map[string]decimal.Decimal) (Result, error) {
	filtered := make([]model.LedgerTrade, 0, len(trades))
	for _, t := range trades {
		if asOf != nil {
			if inclusive && t.TS.After(*asOf) {
				continue
			}
			if !inclusive && !t.TS.Before(*asOf) {
				continue
			}
		}
		filtered = append(filtered, t)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return tradeSortKey(filtered[i]) < tradeSortKey(filtered[j])
	})

	groups := make(map[string]*groupState)
	fills := make([]model.FillAttribution, 0, len(filtered))

	for _, t := range filtered {
		if err := t.Validate(); err != nil {
			return Result{}, fmt.Errorf("ledger: invalid trade %s: %w", t.TradeID(), err)
		}

		gk := t.GroupKey()
		g, ok := groups[gk]
		if !ok {
			g = &groupState{realizedGross: decimal.Zero, realizedFees: decimal.Zero}
			groups[gk] = g
		}

		mult := Multiplier(t.Symbol, cfg.OptionMultiplierOverrides)

		feesTotal := t.Fees.Add(t.Slippage)
		feesPerUnit := decimal.Zero
		if !t.Qty.IsZero() {
			feesPerUnit = feesTotal.Div(t.Qty)
		}

		var effPrice decimal.Decimal
		if t.Side == model.SideBuy {
			effPrice = t.Price.Add(feesPerUnit)
		} else {
			effPrice = t.Price.Sub(feesPerUnit)
		}

		lot := model.Lot{
			Qty:            t.Qty,
			Price:          t.Price,
			EffectivePrice: effPrice,
			FeesPerUnit:    feesPerUnit,
			TS:             t.TS,
			TradeID:        t.TradeID(),
		}

		realizedGross := decimal.Zero
		realizedFees := decimal.Zero

		switch t.Side {
		case model.SideBuy:
			realizedGross, realizedFees, g.shorts, lot.Qty = matchAgainst(g.shorts, lot, mult, true)
			if lot.Qty.Sign() > 0 {
				g.longs = append(g.longs, lot)
			}
		case model.SideSell:
			realizedGross, realizedFees, g.longs, lot.Qty = matchAgainst(g.longs, lot, mult, false)
			if lot.Qty.Sign() > 0 {
				g.shorts = append(g.shorts, lot)
			}
		default:
			return Result{}, fmt.Errorf("ledger: unknown side %q", t.Side)
		}

		g.realizedGross = g.realizedGross.Add(realizedGross)
		g.realizedFees = g.realizedFees.Add(realizedFees)
		realizedNet := realizedGross.Sub(realizedFees)

		positionAfter := netQty(g.longs).Sub(netQty(g.shorts))

		fills = append(fills, model.FillAttribution{
			TradeID:          t.TradeID(),
			RealizedGross:    realizedGross,
			RealizedFees:     realizedFees,
			RealizedNet:      realizedNet,
			PositionQtyAfter: positionAfter,
		})
	}

	out := make(map[string]model.GroupAggregate, len(groups))
	for gk, g := range groups {
		symbol := symbolFromGroupKey(gk)
		mark, hasMark := marks[symbol]
		mult := Multiplier(symbol, cfg.OptionMultiplierOverrides)

		unrealized := decimal.Zero
		if hasMark {
			for _, lot := range g.longs {
				unrealized = unrealized.Add(mark.Sub(lot.Price).Mul(lot.Qty).Mul(mult))
			}
			for _, lot := range g.shorts {
				unrealized = unrealized.Add(lot.Price.Sub(mark).Mul(lot.Qty).Mul(mult))
			}
		}

		net := g.realizedGross.Sub(g.realizedFees)
		out[gk] = model.GroupAggregate{
			Realized:      net,
			RealizedGross: g.realizedGross,
			RealizedFees:  g.realizedFees,
			Unrealized:    unrealized,
			Net:           net.Add(unrealized),
			PositionQty:   netQty(g.longs).Sub(netQty(g.shorts)),
			OpenLongs:     append([]model.Lot(nil), g.longs...),
			OpenShorts:    append([]model.Lot(nil), g.shorts...),
		}
	}

	return Result{Fills: fills, Groups: out}, nil
}

// matchAgainst closes opposite-side lots FIFO against incoming, applying
// the contract multiplier to price-delta-derived gross but not to the
// already-in-dollars fee allocation (see model.Lot doc comment).
// closingShort indicates whether incoming is closing short inventory (buy side, true)
// or long inventory (sell side, false) — it only affects the sign of the
// price delta.
func matchAgainst(opposite []model.Lot, incoming model.Lot, multiplier decimal.Decimal, closingShort bool) (gross, fees decimal.Decimal, remainingOpposite []model.Lot, remainingQty decimal.Decimal) {
	gross = decimal.Zero
	fees = decimal.Zero
	remaining := incoming.Qty

	i := 0
	for remaining.Sign() > 0 && i < len(opposite) {
		lot := opposite[i]
		matched := decimal.Min(remaining, lot.Qty)

		var delta decimal.Decimal
		if closingShort {
			// Buy covering a short: gross = (short_open_price - buy_price) * matched
			delta = lot.Price.Sub(incoming.Price)
		} else {
			// Sell closing a long: gross = (sell_price - long_open_price) * matched
			delta = incoming.Price.Sub(lot.Price)
		}
		gross = gross.Add(delta.Mul(matched).Mul(multiplier))
		fees = fees.Add(lot.FeesPerUnit.Add(incoming.FeesPerUnit).Mul(matched))

		lot.Qty = lot.Qty.Sub(matched)
		remaining = remaining.Sub(matched)

		if lot.Qty.Sign() <= 0 {
			i++
		} else {
			opposite[i] = lot
		}
	}

	return gross, fees, opposite[i:], remaining
}

func netQty(lots []model.Lot) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lots {
		total = total.Add(l.Qty)
	}
	return total
}

// tradeSortKey renders the deterministic ordering tuple from spec §4.2 —
// (ts, broker_fill_id, order_id, index) — as a single comparable string.
// Unix nanoseconds zero-padded to 20 digits keeps lexical order equal to
// time order across the full int64 range.
func tradeSortKey(t model.LedgerTrade) string {
	return fmt.Sprintf("%020d|%s|%s|%010d", t.TS.UnixNano(), t.BrokerFillID, t.OrderID, t.Index)
}

func symbolFromGroupKey(gk string) string {
	// GroupKey is tenant|uid|strategy|symbol.
	idx := -1
	for i := len(gk) - 1; i >= 0; i-- {
		if gk[i] == '|' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return gk
	}
	return gk[idx+1:]
}
