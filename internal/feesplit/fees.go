package feesplit

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FeeBasis selects what realized P&L figure a performance fee is charged
// against.
type FeeBasis string

const (
	// BasisNetProfitPositive clamps the fee base at 0 — a losing period
	// never produces a negative performance fee.
	BasisNetProfitPositive FeeBasis = "net_profit_positive"
	BasisNetProfit         FeeBasis = "net_profit"
)

// revenueShareTolerance is the float-sum slack for creator/platform/user
// percentages, matching the original's `abs(total-1.0) > 1e-9` check.
const revenueShareTolerance = 1e-9

// RevenueShareTerm is the marketplace's fee-sharing agreement for a
// rented strategy subscription.
type RevenueShareTerm struct {
	FeeRate     float64
	CreatorPct  float64
	PlatformPct float64
	UserPct     float64
	Basis       FeeBasis // defaults to BasisNetProfitPositive if empty
}

// Validate enforces spec §4.7's revenue-share invariants: all rates are
// non-negative and the three split percentages sum to 1 within tolerance.
func (t RevenueShareTerm) Validate() error {
	if t.FeeRate < 0 {
		return fmt.Errorf("feesplit: fee_rate must be >= 0, got %v", t.FeeRate)
	}
	if t.CreatorPct < 0 || t.PlatformPct < 0 || t.UserPct < 0 {
		return fmt.Errorf("feesplit: creator_pct/platform_pct/user_pct must be >= 0")
	}
	total := t.CreatorPct + t.PlatformPct + t.UserPct
	if math.Abs(total-1.0) > revenueShareTolerance {
		return fmt.Errorf("feesplit: creator_pct + platform_pct + user_pct must sum to 1.0, got %v", total)
	}
	return nil
}

func (t RevenueShareTerm) basis() FeeBasis {
	if t.Basis == "" {
		return BasisNetProfitPositive
	}
	return t.Basis
}

// FeeSplit is a deterministic three-way split of a fee amount; the three
// amounts always sum to FeeAmount.
type FeeSplit struct {
	FeeAmount      decimal.Decimal
	CreatorAmount  decimal.Decimal
	PlatformAmount decimal.Decimal
	UserAmount     decimal.Decimal
}

// ComputeMonthlyFee computes and splits a performance fee for one period,
// per spec §4.7: `fee = basis_amount * fee_rate`, where basis_amount is
// realizedPnL (BasisNetProfit) or max(realizedPnL, 0) (BasisNetProfitPositive,
// the default).
func ComputeMonthlyFee(term RevenueShareTerm, realizedPnL decimal.Decimal) (FeeSplit, error) {
	if err := term.Validate(); err != nil {
		return FeeSplit{}, err
	}

	basisAmount := realizedPnL
	if term.basis() == BasisNetProfitPositive {
		if basisAmount.IsNegative() {
			basisAmount = decimal.Zero
		}
	}

	feeAmount := basisAmount.Mul(decimal.NewFromFloat(term.FeeRate))
	creatorAmount := feeAmount.Mul(decimal.NewFromFloat(term.CreatorPct))
	platformAmount := feeAmount.Mul(decimal.NewFromFloat(term.PlatformPct))

	return FeeSplit{
		FeeAmount:      feeAmount,
		CreatorAmount:  creatorAmount,
		PlatformAmount: platformAmount,
		UserAmount:     feeAmount.Sub(creatorAmount).Sub(platformAmount),
	}, nil
}
