package ledger

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

// occPattern matches a standard OCC option symbol: root (1-6 letters),
// expiry YYMMDD, right C/P, strike as 8 digits with 3 implied decimal
// places (e.g. SPY251230C00500000 = SPY, 2025-12-30, call, strike 500.000).
var occPattern = regexp.MustCompile(`^([A-Z]{1,6})(\d{2})(\d{2})(\d{2})([CP])(\d{8})$`)

// OCCDetails is the decoded form of an OCC-format option symbol.
type OCCDetails struct {
	Underlying string
	Expiry     time.Time
	Right      string // "C" or "P"
	Strike     decimal.Decimal
}

// ParseOCC decodes symbol as an OCC option contract. Returns ok=false for
// any symbol that does not match the OCC shape, which callers treat as a
// plain equity (multiplier 1).
func ParseOCC(symbol string) (OCCDetails, bool) {
	m := occPattern.FindStringSubmatch(symbol)
	if m == nil {
		return OCCDetails{}, false
	}
	yy, mm, dd := m[2], m[3], m[4]
	expiry, err := time.Parse("060102", yy+mm+dd)
	if err != nil {
		return OCCDetails{}, false
	}
	strikeThousandths, err := decimal.NewFromString(m[6])
	if err != nil {
		return OCCDetails{}, false
	}
	strike := strikeThousandths.Div(decimal.NewFromInt(1000))

	return OCCDetails{
		Underlying: m[1],
		Expiry:     expiry.UTC(),
		Right:      m[5],
		Strike:     strike,
	}, true
}
