// Package ledger defines the persistence ports the ledger core depends on.
//
// Stores are dumb: they do not re-validate amounts or category membership.
// Callers (the services layer) guarantee record invariants before writing.
package ledger

import (
	"context"

	"fintrack/internal/core"
)

type (
	// ExpenseRepository persists expenses and answers month-scoped queries.
	ExpenseRepository interface {
		// InsertExpense stores e under a freshly assigned id and returns it.
		InsertExpense(ctx context.Context, e core.Expense) (int64, error)
		// UpdateExpense replaces the record with e.ID. Missing ids are a no-op.
		UpdateExpense(ctx context.Context, e core.Expense) error
		// DeleteExpense removes the record with e.ID. Missing ids are a no-op.
		DeleteExpense(ctx context.Context, e core.Expense) error

		ExpensesByMonth(ctx context.Context, month, year int) ([]core.Expense, error)
		TotalExpenseByMonth(ctx context.Context, month, year int) (core.Total, error)
		AllExpenses(ctx context.Context) ([]core.Expense, error)
		ExpensesByCategoryMonth(ctx context.Context, month, year int) ([]core.CategoryTotal, error)
		ExpensesByCategoryName(ctx context.Context, category string, month, year int) ([]core.Expense, error)
	}

	// IncomeRepository persists incomes and answers month-scoped queries.
	IncomeRepository interface {
		InsertIncome(ctx context.Context, in core.Income) (int64, error)
		UpdateIncome(ctx context.Context, in core.Income) error
		DeleteIncome(ctx context.Context, in core.Income) error

		IncomesByMonth(ctx context.Context, month, year int) ([]core.Income, error)
		TotalIncomeByMonth(ctx context.Context, month, year int) (core.Total, error)
		AllIncomes(ctx context.Context) ([]core.Income, error)
	}

	// CategoryRepository persists the category registry.
	CategoryRepository interface {
		// InsertCategory ignores the insert when the name already exists.
		InsertCategory(ctx context.Context, c core.Category) error
		InsertCategories(ctx context.Context, cs []core.Category) error
		DeleteCategory(ctx context.Context, name string) error
		// Categories returns all rows ordered by name ascending.
		Categories(ctx context.Context) ([]core.Category, error)
		CategoryExists(ctx context.Context, name string) (bool, error)
		CountCategories(ctx context.Context) (int, error)
		// ExpenseCategoryNames returns the distinct category strings referenced by expenses.
		ExpenseCategoryNames(ctx context.Context) ([]string, error)
	}

	// LedgerAppender inserts a whole batch of records with fresh ids as one
	// atomic write.
	LedgerAppender interface {
		AppendLedger(ctx context.Context, expenses []core.Expense, incomes []core.Income) error
	}

	// KeyValueStore is a tiny durable slot store.
	KeyValueStore interface {
		PutValue(ctx context.Context, key string, value []byte) error
		GetValue(ctx context.Context, key string) (value []byte, ok bool, err error)
	}

	// Store is everything a backend provides.
	Store interface {
		ExpenseRepository
		IncomeRepository
		CategoryRepository
		LedgerAppender
		KeyValueStore
		Close() error
	}
)
