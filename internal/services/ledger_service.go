// Package services validates user input and orchestrates the ledger,
// category registry and backup components.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
	"fintrack/internal/validation"
)

// CategoryChecker answers registry membership questions.
type CategoryChecker interface {
	Exists(ctx context.Context, name string) (bool, error)
}

// ExpenseForm is the raw input for creating or replacing an expense.
type ExpenseForm struct {
	Amount      string    `json:"amount" validate:"notblank"`
	Category    string    `json:"category" validate:"notblank,max=64"`
	Description string    `json:"description" validate:"max=200"`
	Date        time.Time `json:"date"`
}

// IncomeForm is the raw input for creating or replacing an income.
type IncomeForm struct {
	Amount      string    `json:"amount" validate:"notblank"`
	Source      string    `json:"source" validate:"notblank,max=64"`
	Description string    `json:"description" validate:"max=200"`
	Date        time.Time `json:"date"`
}

type ledgerWriter interface {
	ledger.ExpenseRepository
	ledger.IncomeRepository
}

// LedgerService rejects invalid input before anything reaches the store.
type LedgerService struct {
	store      ledgerWriter
	categories CategoryChecker
	validator  *validation.Validator
	logger     *log.Logger
}

func NewLedgerService(store ledgerWriter, categories CategoryChecker, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &LedgerService{
		store:      store,
		categories: categories,
		validator:  validation.New(),
		logger:     logger.WithComponent(log.ComponentLedger),
	}
}

// AddExpense validates form and stores a new expense.
func (s *LedgerService) AddExpense(ctx context.Context, form ExpenseForm) (core.Expense, error) {
	e, err := s.buildExpense(ctx, form)
	if err != nil {
		return core.Expense{}, err
	}

	id, err := s.store.InsertExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("add expense: %w", err)
	}
	e.ID = id

	s.logger.InfoContext(ctx, "Expense added",
		log.NewFields().WithRecord("expense", id, e.Amount).WithPeriod(e.Month, e.Year).ToSlice()...)
	return e, nil
}

// UpdateExpense replaces expense id with form. Unknown ids are ignored.
func (s *LedgerService) UpdateExpense(ctx context.Context, id int64, form ExpenseForm) (core.Expense, error) {
	e, err := s.buildExpense(ctx, form)
	if err != nil {
		return core.Expense{}, err
	}
	e.ID = id

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense updated",
		log.NewFields().WithRecord("expense", id, e.Amount).WithPeriod(e.Month, e.Year).ToSlice()...)
	return e, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.store.DeleteExpense(ctx, core.Expense{ID: id}); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldID, id)
	return nil
}

// AddIncome validates form and stores a new income.
func (s *LedgerService) AddIncome(ctx context.Context, form IncomeForm) (core.Income, error) {
	in, err := s.buildIncome(form)
	if err != nil {
		return core.Income{}, err
	}

	id, err := s.store.InsertIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("add income: %w", err)
	}
	in.ID = id

	s.logger.InfoContext(ctx, "Income added",
		log.NewFields().WithRecord("income", id, in.Amount).WithPeriod(in.Month, in.Year).ToSlice()...)
	return in, nil
}

// UpdateIncome replaces income id with form. Unknown ids are ignored.
func (s *LedgerService) UpdateIncome(ctx context.Context, id int64, form IncomeForm) (core.Income, error) {
	in, err := s.buildIncome(form)
	if err != nil {
		return core.Income{}, err
	}
	in.ID = id

	if err := s.store.UpdateIncome(ctx, in); err != nil {
		return core.Income{}, fmt.Errorf("update income: %w", err)
	}
	s.logger.InfoContext(ctx, "Income updated",
		log.NewFields().WithRecord("income", id, in.Amount).WithPeriod(in.Month, in.Year).ToSlice()...)
	return in, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, id int64) error {
	if err := s.store.DeleteIncome(ctx, core.Income{ID: id}); err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	s.logger.InfoContext(ctx, "Income deleted", log.FieldID, id)
	return nil
}

func (s *LedgerService) buildExpense(ctx context.Context, form ExpenseForm) (core.Expense, error) {
	if err := s.validate(form); err != nil {
		return core.Expense{}, err
	}

	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	category := strings.TrimSpace(form.Category)
	ok, err := s.categories.Exists(ctx, category)
	if err != nil {
		return core.Expense{}, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return core.Expense{}, fmt.Errorf("%w: %s", core.ErrUnknownCategory, category)
	}

	e := core.NewExpense(amount, category, strings.TrimSpace(form.Description), form.Date)
	return e, e.Validate()
}

func (s *LedgerService) buildIncome(form IncomeForm) (core.Income, error) {
	if err := s.validate(form); err != nil {
		return core.Income{}, err
	}

	amount, err := core.ParseAmount(form.Amount)
	if err != nil {
		return core.Income{}, err
	}

	in := core.NewIncome(amount, strings.TrimSpace(form.Source), strings.TrimSpace(form.Description), form.Date)
	return in, in.Validate()
}

// validate runs the struct rules and maps the first failing field onto the
// matching core error so callers can use errors.Is.
func (s *LedgerService) validate(form any) error {
	var date time.Time
	switch f := form.(type) {
	case ExpenseForm:
		date = f.Date
	case IncomeForm:
		date = f.Date
	}

	err := s.validator.Struct(form)
	if err == nil {
		if date.IsZero() {
			return core.ErrInvalidDate
		}
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	if sentinel := fieldError(verrs[0]); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, verrs)
	}
	return verrs
}

func fieldError(fe validation.FieldError) error {
	switch {
	case fe.Field == "amount":
		return core.ErrInvalidAmount
	case fe.Field == "category" && fe.Tag == "notblank":
		return core.ErrEmptyCategory
	case fe.Field == "source" && fe.Tag == "notblank":
		return core.ErrEmptySource
	default:
		return nil
	}
}
