package decimal

import (
	"github.com/shopspring/decimal"
)

// Storage precisions
const (
	// AmountPlaces is the scale of every stored derived amount
	AmountPlaces = 2
	// PricePlaces is the scale kept for converted or extracted unit prices
	PricePlaces = 6
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Round2 rounds half away from zero to 2 places
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(AmountPlaces)
}

// RoundPrice rounds a unit price to PricePlaces
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(PricePlaces)
}

// Mul multiplies two decimals, rounds to 2 places
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b).Round(AmountPlaces)
}

// Div divides a by b without rounding.
// The caller must guarantee b is non-zero.
func Div(a, b decimal.Decimal) decimal.Decimal {
	return a.Div(b)
}

// Percent computes amount * (rate/100), rounded to 2 places
func Percent(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	return amount.Mul(ratePercent).Div(hundred).Round(AmountPlaces)
}

// StripPercent extracts the base from a gross amount: gross / (1 + rate/100).
// The result is not rounded.
func StripPercent(gross, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return gross
	}
	return Div(gross, decimal.NewFromInt(1).Add(Div(ratePercent, hundred)))
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}

// InPercentRange reports whether d lies in [0, 100]
func InPercentRange(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero) && d.LessThanOrEqual(hundred)
}

// WithinCent reports whether a and b differ by at most 0.01
func WithinCent(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.New(1, -AmountPlaces))
}
