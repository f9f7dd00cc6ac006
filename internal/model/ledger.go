package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side is a fill's trade direction.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// LedgerTrade is an immutable fill record written by the execution
// collaborator. The core ledger never mutates a LedgerTrade — it only
// ever appends and reads.
type LedgerTrade struct {
	TenantID      string          `json:"tenant_id"`
	UID           string          `json:"uid"`
	StrategyID    string          `json:"strategy_id"`
	RunID         string          `json:"run_id"`
	Symbol        string          `json:"symbol"`
	Side          Side            `json:"side"`
	Qty           decimal.Decimal `json:"qty"`
	Price         decimal.Decimal `json:"price"`
	TS            time.Time       `json:"ts_utc"`
	Fees          decimal.Decimal `json:"fees"`
	Slippage      decimal.Decimal `json:"slippage"`
	OrderID       string          `json:"order_id,omitempty"`
	BrokerFillID  string          `json:"broker_fill_id,omitempty"`
	// Index preserves submission order for fills sharing an identical
	// (ts, broker_fill_id, order_id) key, completing the deterministic
	// sort tuple from spec §4.2.
	Index int `json:"index"`
}

// Validate enforces the fill's edge-case rules: qty and price must be
// strictly positive; fees and slippage must be non-negative.
func (t LedgerTrade) Validate() error {
	if t.Qty.Sign() <= 0 {
		return fmt.Errorf("ledger trade: qty must be > 0, got %s", t.Qty)
	}
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("ledger trade: price must be > 0, got %s", t.Price)
	}
	if t.Fees.Sign() < 0 {
		return fmt.Errorf("ledger trade: fees must be >= 0, got %s", t.Fees)
	}
	if t.Slippage.Sign() < 0 {
		return fmt.Errorf("ledger trade: slippage must be >= 0, got %s", t.Slippage)
	}
	if t.TS.IsZero() {
		return fmt.Errorf("ledger trade: ts_utc is required")
	}
	return nil
}

// GroupKey identifies the (tenant, uid, strategy, symbol) partition this
// trade belongs to for FIFO matching.
func (t LedgerTrade) GroupKey() string {
	return t.TenantID + "|" + t.UID + "|" + t.StrategyID + "|" + t.Symbol
}

// TradeID synthesizes a stable identifier for attribution output. Prefers
// the broker's own fill id, then the order id, then falls back to a
// timestamp+index composite so every trade has a usable identity even
// when the execution collaborator didn't supply one.
func (t LedgerTrade) TradeID() string {
	if t.BrokerFillID != "" {
		return t.BrokerFillID
	}
	if t.OrderID != "" {
		return t.OrderID
	}
	return fmt.Sprintf("%s-%d-%d", t.Symbol, t.TS.UnixNano(), t.Index)
}

// Lot is the FIFO engine's internal open-position unit. Price is the raw
// quoted fill price; EffectivePrice is Price adjusted by the per-unit
// allocation of (fees+slippage), signed so it represents the true
// cost-basis-affecting price for this lot's side. Matching uses Price and
// FeesPerUnit separately (see internal/ledger) so the options contract
// multiplier — which scales price deltas but not already-in-dollars fees —
// is applied correctly; EffectivePrice is carried for reporting/audit only.
type Lot struct {
	Qty            decimal.Decimal
	Price          decimal.Decimal
	EffectivePrice decimal.Decimal
	FeesPerUnit    decimal.Decimal
	TS             time.Time
	TradeID        string
}

// FillAttribution is the per-fill output of the FIFO engine.
type FillAttribution struct {
	TradeID          string
	RealizedGross    decimal.Decimal
	RealizedFees     decimal.Decimal
	RealizedNet      decimal.Decimal
	PositionQtyAfter decimal.Decimal
}

// GroupAggregate is the per-(tenant,uid,strategy,symbol) summary of the
// FIFO engine's outputs. RealizedGross and RealizedFees break Realized
// (which is always net, RealizedGross-RealizedFees) into its two
// components so period attribution (internal/feesplit) can report
// fee-aware deltas without re-deriving them from individual fills.
type GroupAggregate struct {
	Realized      decimal.Decimal
	RealizedGross decimal.Decimal
	RealizedFees  decimal.Decimal
	Unrealized    decimal.Decimal
	Net           decimal.Decimal
	PositionQty   decimal.Decimal
	OpenLongs     []Lot
	OpenShorts    []Lot
}
