// Package money is the single place where prices, values and percentages are computed.
//
// Everything is a shopspring decimal. Binary floats never touch a price: callers parse
// strings (or integers) into decimals and stay there.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentPlaces is the precision kept for PnL percentages.
const PercentPlaces = 4

var hundred = decimal.NewFromInt(100)

// Zero is the additive identity.
var Zero = decimal.Zero

func Add(a, b decimal.Decimal) decimal.Decimal { return a.Add(b) }

func Sub(a, b decimal.Decimal) decimal.Decimal { return a.Sub(b) }

func Mul(a, b decimal.Decimal) decimal.Decimal { return a.Mul(b) }

// Cmp returns -1 if a < b, 0 if a == b and 1 if a > b.
func Cmp(a, b decimal.Decimal) int { return a.Cmp(b) }

// Round rounds half away from zero to the given number of decimal places.
func Round(v decimal.Decimal, places int32) decimal.Decimal { return v.Round(places) }

// FromInt converts a share count into a decimal.
func FromInt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// Parse reads a base-10 string such as "10.25".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Percent returns numerator / denominator * 100 rounded to PercentPlaces.
// A zero denominator yields zero.
func Percent(numerator, denominator decimal.Decimal) decimal.Decimal {
	if denominator.IsZero() {
		return decimal.Zero
	}
	return numerator.Mul(hundred).Div(denominator).Round(PercentPlaces)
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
