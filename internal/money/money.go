// Package money represents monetary values in integer minor units (cents).
// Every comparison that gates a business decision is an exact integer
// comparison; the 0.01 currency-unit tolerance exists only at the float
// boundary where backend payloads and operator input are converted.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is a monetary value stored in minor units.
type Money = int64

// Epsilon is the settlement tolerance in minor units.
const Epsilon Money = 1

// FromFloat converts a currency amount expressed in major units into cents,
// rounding half away from zero.
func FromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

// Float converts cents back to major units for display boundaries only.
func Float(m Money) float64 {
	return float64(m) / 100
}

// ParseDecimal converts a decimal string such as "283.00" into cents. The
// backend emits DECIMAL columns as strings.
func ParseDecimal(s string) (Money, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("money: empty amount")
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return FromFloat(v), nil
}

// FormatDecimal renders cents as a plain decimal string with two places.
func FormatDecimal(m Money) string {
	sign := ""
	if m < 0 {
		sign = "-"
		m = -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}
