package backup

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
)

// MergeResult counts the records appended by Merge.
type MergeResult struct {
	Expenses int
	Incomes  int
}

// Merge appends every record of s to the ledger under fresh ids. Existing
// records are never touched, so importing the same snapshot twice doubles
// it. The append is atomic.
func Merge(ctx context.Context, appender ledger.LedgerAppender, s Snapshot) (MergeResult, error) {
	expenses := make([]core.Expense, len(s.Expenses))
	for i, e := range s.Expenses {
		e.ID = 0
		if e.Month == 0 && e.Date != 0 {
			e.SetDate(time.UnixMilli(e.Date))
		}
		expenses[i] = e
	}

	incomes := make([]core.Income, len(s.Incomes))
	for i, in := range s.Incomes {
		in.ID = 0
		if in.Month == 0 && in.Date != 0 {
			in.SetDate(time.UnixMilli(in.Date))
		}
		incomes[i] = in
	}

	if err := appender.AppendLedger(ctx, expenses, incomes); err != nil {
		return MergeResult{}, fmt.Errorf("merge snapshot: %w", err)
	}
	return MergeResult{Expenses: len(expenses), Incomes: len(incomes)}, nil
}
