package estimate

import "github.com/shopspring/decimal"

// CeilToStep rounds x away from zero to the next multiple of step.
// Multiples of step are returned unchanged; a non-positive step disables rounding.
func CeilToStep(x, step decimal.Decimal) decimal.Decimal {
	if !step.IsPositive() {
		return x
	}
	q, r := x.QuoRem(step, 0)
	if r.IsZero() {
		return x
	}
	if x.IsNegative() {
		return q.Sub(decimal.NewFromInt(1)).Mul(step)
	}
	return q.Add(decimal.NewFromInt(1)).Mul(step)
}
