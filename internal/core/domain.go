package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// Expense is a single spending record. Month and Year are denormalized from
	// Date and must always be written together with it.
	Expense struct {
		ID          int64   `json:"id"`
		Amount      float64 `json:"amount"`
		Category    string  `json:"category"`
		Description string  `json:"description"`
		Date        int64   `json:"date"` // epoch milliseconds
		Month       int     `json:"month"`
		Year        int     `json:"year"`
	}

	// Income mirrors Expense with a free-form Source instead of a registry category.
	Income struct {
		ID          int64   `json:"id"`
		Amount      float64 `json:"amount"`
		Source      string  `json:"source"`
		Description string  `json:"description"`
		Date        int64   `json:"date"` // epoch milliseconds
		Month       int     `json:"month"`
		Year        int     `json:"year"`
	}

	Category struct {
		Name     string `json:"name"`
		IsCustom bool   `json:"isCustom"`
	}
)

var (
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidDate     = errors.New("invalid date")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCategory = errors.New("unknown category")
	ErrEmptySource     = errors.New("empty source")
)

// DefaultCategories are seeded into an empty registry on first start.
var DefaultCategories = []string{
	"Groceries",
	"Entertainment",
	"Cab Ride",
	"Restaurant",
	"Travel",
	"Gifts",
	"Utilities",
	"Shopping",
	"Health",
	"Other",
}

// NewExpense builds an expense whose month and year are derived from at.
func NewExpense(amount float64, category, description string, at time.Time) Expense {
	e := Expense{Amount: amount, Category: category, Description: description}
	e.SetDate(at)
	return e
}

// NewIncome builds an income whose month and year are derived from at.
func NewIncome(amount float64, source, description string, at time.Time) Income {
	in := Income{Amount: amount, Source: source, Description: description}
	in.SetDate(at)
	return in
}

// SetDate replaces the date and re-derives Month and Year in the same step.
func (e *Expense) SetDate(at time.Time) {
	e.Date, e.Month, e.Year = DateParts(at)
}

// Time returns the expense date in the local time zone.
func (e Expense) Time() time.Time {
	return time.UnixMilli(e.Date)
}

func (e Expense) Validate() error {
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return validatePeriod(e.Date, e.Month)
}

// SetDate replaces the date and re-derives Month and Year in the same step.
func (in *Income) SetDate(at time.Time) {
	in.Date, in.Month, in.Year = DateParts(at)
}

// Time returns the income date in the local time zone.
func (in Income) Time() time.Time {
	return time.UnixMilli(in.Date)
}

func (in Income) Validate() error {
	if in.Amount <= 0 {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(in.Source) == "" {
		return ErrEmptySource
	}
	return validatePeriod(in.Date, in.Month)
}

// DateParts splits t into epoch milliseconds plus the month and year as seen
// in t's own location.
func DateParts(t time.Time) (millis int64, month, year int) {
	return t.UnixMilli(), int(t.Month()), t.Year()
}

func validatePeriod(date int64, month int) error {
	if date == 0 {
		return ErrInvalidDate
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}
