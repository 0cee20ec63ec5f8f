package discount

import "github.com/shopspring/decimal"

var (
	zero    = decimal.Zero
	hundred = decimal.NewFromInt(100)
)

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// round2 finalizes a monetary amount: round half-up to 2 decimals,
// exactly once, at the point the amount leaves the engine.
// Intermediate sub-rule math stays unrounded.
func round2(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

func minDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
