// Package quantity provides fixed-precision arithmetic for stock counts and money.
// All results are rounded half away from zero to two decimal places so that
// repeated small adjustments never accumulate floating point drift.
package quantity

import "github.com/shopspring/decimal"

// Places is the number of decimal places every quantity is fixed to.
const Places = 2

// Round2 fixes v to two decimal places.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(Places).Float64()
	return f
}

// Add returns a + b fixed to two decimals.
func Add(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Round(Places).Float64()
	return f
}

// Sub returns a - b fixed to two decimals.
func Sub(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(Places).Float64()
	return f
}

// Mul returns a * b fixed to two decimals.
func Mul(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Round(Places).Float64()
	return f
}

// Div returns a / b fixed to two decimals, or zero when b is zero.
func Div(a, b float64) float64 {
	if IsZero(b) {
		return 0
	}
	f, _ := decimal.NewFromFloat(a).DivRound(decimal.NewFromFloat(b), Places+2).Round(Places).Float64()
	return f
}

// Sum adds all values, rounding once per step.
func Sum(values ...float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v)).Round(Places)
	}
	f, _ := total.Float64()
	return f
}

// IsZero reports whether v rounds to 0.00.
func IsZero(v float64) bool {
	return decimal.NewFromFloat(v).Round(Places).IsZero()
}

// Positive reports whether v rounds to a value above 0.00.
func Positive(v float64) bool {
	return decimal.NewFromFloat(v).Round(Places).IsPositive()
}
