package money

import "github.com/shopspring/decimal"

// Epsilon is the tolerance used when comparing settled monetary values. It
// absorbs the rounding noise of two-decimal arithmetic (one cent).
var Epsilon = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Round2 rounds to two fraction digits, ties away from zero. Every monetary
// rounding in this codebase goes through here so figures never drift between
// components.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float (e.g. a NUMERIC scanned from Postgres) into a
// decimal at two-digit precision.
func FromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

// Percent returns base scaled by pct/100, unrounded.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Ratio divides num by den at high precision, returning 1 when den is not
// positive. Used for the bill proration factor.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.Sign() <= 0 {
		return decimal.NewFromInt(1)
	}
	return num.DivRound(den, 16)
}

// LTE2 reports a <= b after both sides are rounded to cents.
func LTE2(a, b decimal.Decimal) bool {
	return Round2(a).LessThanOrEqual(Round2(b))
}

// Equal2 reports whether two amounts agree to the cent.
func Equal2(a, b decimal.Decimal) bool {
	return Round2(a).Equal(Round2(b))
}
