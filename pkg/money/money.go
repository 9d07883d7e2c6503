// Package money holds the decimal helpers used for every currency amount in the ledger.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale int32 = 2

// Parse converts a textual amount into a decimal, rejecting values with more
// fractional digits than Scale.
func Parse(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", raw, err)
	}
	if !HasValidScale(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, Scale)
	}
	return d, nil
}

// FromInt builds an amount from a whole currency value.
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// HasValidScale reports whether d fits in Scale fractional digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Round(Scale).Equal(d)
}

// IsPositive reports whether d > 0.
func IsPositive(d decimal.Decimal) bool {
	return d.Sign() > 0
}

// IsValidPositive combines IsPositive and HasValidScale.
func IsValidPositive(d decimal.Decimal) bool {
	return IsPositive(d) && HasValidScale(d)
}

// Sum adds all values.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Outstanding returns total - paid, floored at zero.
func Outstanding(total, paid decimal.Decimal) decimal.Decimal {
	remaining := total.Sub(paid)
	if remaining.Sign() < 0 {
		return decimal.Zero
	}
	return remaining
}

// Format renders an amount with exactly Scale fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
