// Package backup reads and writes portable JSON snapshots of the ledger.
package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"fintrack/internal/core"
)

// SnapshotKey is the key-value slot holding the last snapshot.
const SnapshotKey = "backup_data"

var (
	ErrInvalidSnapshot = errors.New("invalid backup document")
	ErrBackupNotFound  = errors.New("backup file not found")
	ErrExportFailed    = errors.New("backup export failed")
)

// Snapshot is the exported form of the whole ledger.
type Snapshot struct {
	Expenses   []core.Expense `json:"expenses"`
	Incomes    []core.Income  `json:"incomes"`
	BackupDate int64          `json:"backupDate"` // epoch milliseconds
}

// NewSnapshot captures expenses and incomes as of at.
func NewSnapshot(expenses []core.Expense, incomes []core.Income, at time.Time) Snapshot {
	return Snapshot{Expenses: expenses, Incomes: incomes, BackupDate: at.UnixMilli()}
}

// Empty reports whether the snapshot carries no records.
func (s Snapshot) Empty() bool {
	return len(s.Expenses) == 0 && len(s.Incomes) == 0
}

// Time returns BackupDate as a time.Time.
func (s Snapshot) Time() time.Time {
	return time.UnixMilli(s.BackupDate)
}

// Encode renders s as a backup document. Missing lists are written as [].
func Encode(s Snapshot) ([]byte, error) {
	if s.Expenses == nil {
		s.Expenses = []core.Expense{}
	}
	if s.Incomes == nil {
		s.Incomes = []core.Income{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses a backup document. The input must be a JSON object carrying
// at least one of expenses, incomes or backupDate; absent lists decode as
// empty.
func Decode(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeBytes(data)
}

func decodeBytes(data []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	_, hasExpenses := fields["expenses"]
	_, hasIncomes := fields["incomes"]
	_, hasDate := fields["backupDate"]
	if !hasExpenses && !hasIncomes && !hasDate {
		return Snapshot{}, fmt.Errorf("%w: no ledger fields", ErrInvalidSnapshot)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Expenses == nil {
		s.Expenses = []core.Expense{}
	}
	if s.Incomes == nil {
		s.Incomes = []core.Income{}
	}
	return s, nil
}
