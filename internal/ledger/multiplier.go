package ledger

import "github.com/shopspring/decimal"

// DefaultOptionMultiplier is the standard US equity option contract size.
var DefaultOptionMultiplier = decimal.NewFromInt(100)

// EquityMultiplier applies to any symbol that does not parse as OCC.
var EquityMultiplier = decimal.NewFromInt(1)

// Multiplier resolves the contract multiplier for symbol: DefaultOptionMultiplier
// for any OCC-parseable option symbol (or overrides[underlying] if present),
// EquityMultiplier otherwise.
func Multiplier(symbol string, overrides map[string]decimal.Decimal) decimal.Decimal {
	occ, ok := ParseOCC(symbol)
	if !ok {
		return EquityMultiplier
	}
	if overrides != nil {
		if m, ok := overrides[occ.Underlying]; ok {
			return m
		}
	}
	return DefaultOptionMultiplier
}
