// Package types provides common monetary types and utilities.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// CurrencyPlaces is the minor-unit precision for supported currencies
// (2 decimal places for GBP/EUR/USD).
const CurrencyPlaces = 2

// NewMoney creates a Money value from a float.
// WARNING: Use NewMoneyFromString for precise values.
func NewMoney(f float64) Money {
	return decimal.NewFromFloat(f)
}

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// RoundCurrency rounds a monetary value to the currency's minor-unit
// precision using round-half-up.
func RoundCurrency(m Money) Money {
	return m.Round(CurrencyPlaces)
}

// AddCurrency adds two monetary values and rounds the result.
// All repeated monetary additions must go through this operation so that
// rounding is applied at each step and sums cannot drift from the stored
// 2-decimal representation.
func AddCurrency(a, b Money) Money {
	return RoundCurrency(a.Add(b))
}

// SubCurrency subtracts b from a and rounds the result.
func SubCurrency(a, b Money) Money {
	return RoundCurrency(a.Sub(b))
}

// SumCurrency folds AddCurrency over a list of monetary values.
func SumCurrency(values ...Money) Money {
	total := decimal.Zero
	for _, v := range values {
		total = AddCurrency(total, v)
	}
	return total
}

// EqualCurrency reports whether two monetary values are equal once both are
// rounded to currency precision.
func EqualCurrency(a, b Money) bool {
	return RoundCurrency(a).Equal(RoundCurrency(b))
}
