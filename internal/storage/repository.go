package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/events"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable ledger store. It implements every port in
// the ledger package and publishes a change on the bus after each committed
// write that touched a row.
type SQLiteRepository struct {
	db  *sql.DB
	bus events.Publisher
	now func() time.Time
}

func NewSQLiteRepository(dbPath string, bus events.Publisher) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection serializes writers; each statement or tx is atomic.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	from, dirty, err := SchemaVersion(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("%w at version %d", ErrDirtySchema, from)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version != from {
		slog.Info("Ledger schema migrated", "path", dbPath, "from", from, "to", version)
	} else {
		slog.Debug("Ledger schema ready", "path", dbPath, "version", version)
	}

	return &SQLiteRepository{db: db, bus: bus, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) publish(c events.Change) {
	if r.bus != nil {
		r.bus.Publish(c)
	}
}

// InsertExpense implements ledger.ExpenseRepository
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertExpense,
		e.Amount, e.Category, e.Description, e.Date, e.Month, e.Year)
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read expense id: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", id,
		"amount", e.Amount,
		"category", e.Category,
		"month", e.Month,
		"year", e.Year)

	r.publish(events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: id})
	return id, nil
}

// UpdateExpense replaces the stored row. A missing id is a silent no-op.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, updateExpense,
		e.Amount, e.Category, e.Description, e.Date, e.Month, e.Year, e.ID)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindExpense, Op: events.OpUpdate, ID: e.ID})
	}
	return nil
}

// DeleteExpense removes the row with e.ID. A missing id is a silent no-op.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, deleteExpense, e.ID)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", e.ID, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindExpense, Op: events.OpDelete, ID: e.ID})
	}
	return nil
}

func (r *SQLiteRepository) ExpensesByMonth(ctx context.Context, month, year int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, getExpensesByMonth, month, year)
	if err != nil {
		return nil, fmt.Errorf("get expenses by month: %w", err)
	}
	return scanExpenses(rows)
}

func (r *SQLiteRepository) TotalExpenseByMonth(ctx context.Context, month, year int) (core.Total, error) {
	return r.sum(ctx, getTotalExpenseByMonth, month, year)
}

func (r *SQLiteRepository) AllExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, getAllExpenses)
	if err != nil {
		return nil, fmt.Errorf("get all expenses: %w", err)
	}
	return scanExpenses(rows)
}

func (r *SQLiteRepository) ExpensesByCategoryMonth(ctx context.Context, month, year int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, getExpensesByCategory, month, year)
	if err != nil {
		return nil, fmt.Errorf("get category sums: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryTotal, 0)
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ExpensesByCategoryName(ctx context.Context, category string, month, year int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, getExpensesByCategoryName, category, month, year)
	if err != nil {
		return nil, fmt.Errorf("get expenses for category %s: %w", category, err)
	}
	return scanExpenses(rows)
}

// InsertIncome implements ledger.IncomeRepository
func (r *SQLiteRepository) InsertIncome(ctx context.Context, in core.Income) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertIncome,
		in.Amount, in.Source, in.Description, in.Date, in.Month, in.Year)
	if err != nil {
		return 0, fmt.Errorf("create income: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read income id: %w", err)
	}

	slog.DebugContext(ctx, "Income saved to SQLite",
		"id", id,
		"amount", in.Amount,
		"source", in.Source,
		"month", in.Month,
		"year", in.Year)

	r.publish(events.Change{Kind: events.KindIncome, Op: events.OpCreate, ID: id})
	return id, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, in core.Income) error {
	res, err := r.db.ExecContext(ctx, updateIncome,
		in.Amount, in.Source, in.Description, in.Date, in.Month, in.Year, in.ID)
	if err != nil {
		return fmt.Errorf("update income %d: %w", in.ID, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindIncome, Op: events.OpUpdate, ID: in.ID})
	}
	return nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, in core.Income) error {
	res, err := r.db.ExecContext(ctx, deleteIncome, in.ID)
	if err != nil {
		return fmt.Errorf("delete income %d: %w", in.ID, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindIncome, Op: events.OpDelete, ID: in.ID})
	}
	return nil
}

func (r *SQLiteRepository) IncomesByMonth(ctx context.Context, month, year int) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx, getIncomesByMonth, month, year)
	if err != nil {
		return nil, fmt.Errorf("get incomes by month: %w", err)
	}
	return scanIncomes(rows)
}

func (r *SQLiteRepository) TotalIncomeByMonth(ctx context.Context, month, year int) (core.Total, error) {
	return r.sum(ctx, getTotalIncomeByMonth, month, year)
}

func (r *SQLiteRepository) AllIncomes(ctx context.Context) ([]core.Income, error) {
	rows, err := r.db.QueryContext(ctx, getAllIncomes)
	if err != nil {
		return nil, fmt.Errorf("get all incomes: %w", err)
	}
	return scanIncomes(rows)
}

// AppendLedger inserts every record with a fresh id inside one transaction.
// Incoming ids are ignored.
func (r *SQLiteRepository) AppendLedger(ctx context.Context, expenses []core.Expense, incomes []core.Income) error {
	if len(expenses) == 0 && len(incomes) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	for _, e := range expenses {
		if _, err := tx.ExecContext(ctx, insertExpense,
			e.Amount, e.Category, e.Description, e.Date, e.Month, e.Year); err != nil {
			return fmt.Errorf("append expense: %w", err)
		}
	}
	for _, in := range incomes {
		if _, err := tx.ExecContext(ctx, insertIncome,
			in.Amount, in.Source, in.Description, in.Date, in.Month, in.Year); err != nil {
			return fmt.Errorf("append income: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}

	slog.InfoContext(ctx, "Ledger records appended",
		"expenses", len(expenses),
		"incomes", len(incomes))

	r.publish(events.Change{Kind: events.KindLedger, Op: events.OpAppend})
	return nil
}

// InsertCategory implements ledger.CategoryRepository
func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, insertCategory, c.Name, c.IsCustom)
	if err != nil {
		return fmt.Errorf("create category %s: %w", c.Name, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindCategory, Op: events.OpCreate, Name: c.Name})
	}
	return nil
}

// InsertCategories inserts cs in one transaction, skipping existing names.
func (r *SQLiteRepository) InsertCategories(ctx context.Context, cs []core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin category insert: %w", err)
	}
	defer tx.Rollback()

	var added []string
	for _, c := range cs {
		res, err := tx.ExecContext(ctx, insertCategory, c.Name, c.IsCustom)
		if err != nil {
			return fmt.Errorf("create category %s: %w", c.Name, err)
		}
		if touched(res) {
			added = append(added, c.Name)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit category insert: %w", err)
	}

	for _, name := range added {
		r.publish(events.Change{Kind: events.KindCategory, Op: events.OpCreate, Name: name})
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, deleteCategory, name)
	if err != nil {
		return fmt.Errorf("delete category %s: %w", name, err)
	}
	if touched(res) {
		r.publish(events.Change{Kind: events.KindCategory, Op: events.OpDelete, Name: name})
	}
	return nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, getCategories)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.Name, &c.IsCustom); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CategoryExists(ctx context.Context, name string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, categoryExists, name).Scan(&n); err != nil {
		return false, fmt.Errorf("check category %s: %w", name, err)
	}
	return n > 0, nil
}

// CountCategories returns the total number of categories in the database
func (r *SQLiteRepository) CountCategories(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countCategories).Scan(&n); err != nil {
		return 0, fmt.Errorf("count categories: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ExpenseCategoryNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, getExpenseCategoryNames)
	if err != nil {
		return nil, fmt.Errorf("get expense categories: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan expense category: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// PutValue implements ledger.KeyValueStore
func (r *SQLiteRepository) PutValue(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := r.db.ExecContext(ctx, upsertPreference, key, value, r.now().UnixMilli()); err != nil {
		return fmt.Errorf("store value %s: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) GetValue(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, getPreference, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load value %s: %w", key, err)
	}
	return value, true, nil
}

func (r *SQLiteRepository) sum(ctx context.Context, query string, month, year int) (core.Total, error) {
	var total sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query, month, year).Scan(&total); err != nil {
		return core.Total{}, fmt.Errorf("get month total: %w", err)
	}
	if !total.Valid {
		return core.Total{}, nil
	}
	return core.SomeTotal(total.Float64), nil
}

func scanExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		var e core.Expense
		if err := rows.Scan(&e.ID, &e.Amount, &e.Category, &e.Description, &e.Date, &e.Month, &e.Year); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanIncomes(rows *sql.Rows) ([]core.Income, error) {
	defer rows.Close()

	out := make([]core.Income, 0)
	for rows.Next() {
		var in core.Income
		if err := rows.Scan(&in.ID, &in.Amount, &in.Source, &in.Description, &in.Date, &in.Month, &in.Year); err != nil {
			return nil, fmt.Errorf("scan income: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// touched reports whether a write matched at least one row.
func touched(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}
