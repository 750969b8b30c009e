// Package money implements the settlement arithmetic in integer minor units
// (cents). Decimal values cross into cents at the boundary and convert back
// only when persisted, so no intermediate result ever touches binary floats.
package money

import (
	"github.com/shopspring/decimal"

	"github.com/orlcnr/mesa-core/pkg/enums"
)

// Cents converts a decimal currency amount to integer cents, rounding
// half-up at the second decimal place.
func Cents(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// FromCents converts integer cents back to a two-decimal currency amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Round2 rounds a decimal to two places, half-up.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// ApplyDiscount returns the discounted amount in cents. Percentage values are
// interpreted as percent with two decimals (10.00% -> 1000 basis points).
// The result never goes below zero.
func ApplyDiscount(amountCents int64, value decimal.Decimal, kind enums.DiscountType) int64 {
	if amountCents <= 0 {
		return 0
	}
	valueCents := Cents(value)
	if valueCents <= 0 {
		return amountCents
	}

	switch kind {
	case enums.DiscountTypePercentage:
		if valueCents >= 10000 {
			return 0
		}
		return roundDiv(amountCents*(10000-valueCents), 10000)
	case enums.DiscountTypeFixed:
		remaining := amountCents - valueCents
		if remaining < 0 {
			return 0
		}
		return remaining
	default:
		return amountCents
	}
}

// NetTip returns the tip net of the processor commission, in cents. The rate
// is a percentage (e.g. 2.50 means 2.5%). Non-positive tips or rates pass
// through unchanged.
func NetTip(tipCents int64, commissionRate decimal.Decimal) int64 {
	if tipCents <= 0 || commissionRate.LessThanOrEqual(decimal.Zero) {
		return tipCents
	}
	rateCents := Cents(commissionRate)
	if rateCents >= 10000 {
		return 0
	}
	return roundDiv(tipCents*(10000-rateCents), 10000)
}

// roundDiv divides non-negative cent products with half-up rounding.
func roundDiv(numerator, denominator int64) int64 {
	if numerator <= 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}
