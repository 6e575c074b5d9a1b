package shared

import "github.com/shopspring/decimal"

// MoneyScale is the fixed scale used for all monetary arithmetic.
const MoneyScale = 4

// Round4 rounds half-up to the money scale.
func Round4(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// SafeDiv divides a by b at the money scale; division by zero yields 0.
func SafeDiv(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.DivRound(b, MoneyScale)
}

// Pct computes part/whole*100 at the money scale; a zero whole yields 0.
func Pct(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(decimal.NewFromInt(100)).DivRound(whole, MoneyScale)
}

// Float rounds to the money scale and returns a float64 for response payloads.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Round(MoneyScale).Float64()
	return f
}
