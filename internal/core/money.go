// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts from user input
// and for combining stored floating point totals without accumulating
// representation noise.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a decimal string into a positive amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signed
// values, zero, and anything that is not a plain decimal number are rejected
// with ErrInvalidAmount, as are values too large or too small to survive the
// conversion to float64.
//
// Examples:
//   ParseAmount("12.34") -> 12.34, nil
//   ParseAmount("12,5")  -> 12.5, nil
//   ParseAmount("-1")    -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.ContainsAny(s, "eE") {
		return 0, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return 0, ErrInvalidAmount
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) || f <= 0 {
		return 0, ErrInvalidAmount
	}
	return f, nil
}

// Total is the result of summing amounts over a set of records. Valid is
// false when the set was empty, which is distinct from a true zero sum.
type Total struct {
	Amount float64
	Valid  bool
}

// SomeTotal wraps a computed sum.
func SomeTotal(amount float64) Total {
	return Total{Amount: amount, Valid: true}
}

// Value returns the amount for display, 0 when no value is present.
func (t Total) Value() float64 {
	if !t.Valid {
		return 0
	}
	return t.Amount
}

// Balance returns income minus expense, rounded to cents.
func Balance(income, expense Total) float64 {
	b := decimal.NewFromFloat(income.Value()).Sub(decimal.NewFromFloat(expense.Value()))
	f, _ := b.Round(2).Float64()
	return f
}

// SumAmounts adds amounts with decimal arithmetic. It is used by stores that
// aggregate in process so their totals match what the SQL engine reports for
// typical two-decimal inputs.
func SumAmounts(amounts ...float64) float64 {
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(decimal.NewFromFloat(a))
	}
	f, _ := sum.Float64()
	return f
}
