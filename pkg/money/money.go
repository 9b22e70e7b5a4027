// Package money normalizes monetary amounts to integer minor units so totals
// from different sources can be compared exactly.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Cents converts an amount to integer minor units, rounding half away from zero.
func Cents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// CentsFromFloat converts a float amount as reported by JSON APIs.
func CentsFromFloat(amount float64) int64 {
	return Cents(decimal.NewFromFloat(amount))
}

// Equal compares two amounts at cent precision.
func Equal(a, b decimal.Decimal) bool {
	return Cents(a) == Cents(b)
}

// Within reports whether amount lies in [min, max] at cent precision.
func Within(amount, min, max decimal.Decimal) bool {
	c := Cents(amount)
	return c >= Cents(min) && c <= Cents(max)
}
