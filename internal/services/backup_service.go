package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"fintrack/internal/backup"
	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// ErrNothingToExport is returned when the ledger holds no records.
var ErrNothingToExport = errors.New("no data to export")

type backupStore interface {
	AllExpenses(ctx context.Context) ([]core.Expense, error)
	AllIncomes(ctx context.Context) ([]core.Income, error)
	ledger.LedgerAppender
}

// Preview summarizes a snapshot before the user confirms an import.
type Preview struct {
	Snapshot backup.Snapshot
	Expenses int
	Incomes  int
}

// BackupService moves the whole ledger in and out of snapshots.
type BackupService struct {
	store   backupStore
	manager *backup.Manager
	logger  *log.Logger
}

func NewBackupService(store backupStore, manager *backup.Manager, logger *log.Logger) *BackupService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &BackupService{
		store:   store,
		manager: manager,
		logger:  logger.WithComponent(log.ComponentBackup),
	}
}

// Export writes the ledger to the preferred directory, falling back to the
// private one, and refreshes the key-value snapshot.
func (s *BackupService) Export(ctx context.Context) (backup.ExportResult, error) {
	return s.export(ctx, s.manager.Export)
}

// ExportPrivate writes the ledger to the private directory only.
func (s *BackupService) ExportPrivate(ctx context.Context) (backup.ExportResult, error) {
	return s.export(ctx, s.manager.ExportPrivate)
}

type exportFunc func(context.Context, []core.Expense, []core.Income) (backup.ExportResult, error)

func (s *BackupService) export(ctx context.Context, write exportFunc) (backup.ExportResult, error) {
	expenses, incomes, err := s.loadLedger(ctx)
	if err != nil {
		return backup.ExportResult{}, err
	}
	if len(expenses) == 0 && len(incomes) == 0 {
		return backup.ExportResult{}, ErrNothingToExport
	}

	// The slot is refreshed even when no file can be written, so the
	// latest ledger stays restorable.
	if err := s.manager.SaveSnapshot(ctx, expenses, incomes); err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh stored snapshot", log.FieldError, err)
	}

	res, err := write(ctx, expenses, incomes)
	if err != nil {
		return backup.ExportResult{}, err
	}
	return res, nil
}

func (s *BackupService) loadLedger(ctx context.Context) ([]core.Expense, []core.Income, error) {
	expenses, err := s.store.AllExpenses(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load expenses: %w", err)
	}
	incomes, err := s.store.AllIncomes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load incomes: %w", err)
	}
	return expenses, incomes, nil
}

// PreviewFile parses the snapshot at path without touching the ledger.
func (s *BackupService) PreviewFile(ctx context.Context, path string) (Preview, error) {
	snap, err := s.manager.ImportFile(ctx, path)
	if err != nil {
		return Preview{}, err
	}
	return newPreview(snap), nil
}

// PreviewReader parses a snapshot stream without touching the ledger.
func (s *BackupService) PreviewReader(ctx context.Context, r io.Reader) (Preview, error) {
	snap, err := s.manager.ImportReader(ctx, r)
	if err != nil {
		return Preview{}, err
	}
	return newPreview(snap), nil
}

func newPreview(snap backup.Snapshot) Preview {
	return Preview{Snapshot: snap, Expenses: len(snap.Expenses), Incomes: len(snap.Incomes)}
}

// Import appends every record of snap under fresh ids.
func (s *BackupService) Import(ctx context.Context, snap backup.Snapshot) (backup.MergeResult, error) {
	res, err := backup.Merge(ctx, s.store, snap)
	if err != nil {
		return backup.MergeResult{}, err
	}
	s.logger.InfoContext(ctx, "Backup imported",
		log.FieldExpenses, res.Expenses,
		log.FieldIncomes, res.Incomes,
		log.FieldBackupDate, snap.BackupDate)
	return res, nil
}

// ImportFile parses and merges the snapshot at path.
func (s *BackupService) ImportFile(ctx context.Context, path string) (backup.MergeResult, error) {
	snap, err := s.manager.ImportFile(ctx, path)
	if err != nil {
		return backup.MergeResult{}, err
	}
	return s.Import(ctx, snap)
}

// ImportReader parses and merges a snapshot stream.
func (s *BackupService) ImportReader(ctx context.Context, r io.Reader) (backup.MergeResult, error) {
	snap, err := s.manager.ImportReader(ctx, r)
	if err != nil {
		return backup.MergeResult{}, err
	}
	return s.Import(ctx, snap)
}

// RestoreLatest merges the snapshot kept in the key-value slot. The bool is
// false when there was nothing stored.
func (s *BackupService) RestoreLatest(ctx context.Context) (backup.MergeResult, bool, error) {
	snap, ok, err := s.manager.LoadSnapshot(ctx)
	if err != nil || !ok {
		return backup.MergeResult{}, false, err
	}
	res, err := s.Import(ctx, snap)
	if err != nil {
		return backup.MergeResult{}, true, err
	}
	return res, true, nil
}

// ListBackups returns the files in the private backups directory, newest first.
func (s *BackupService) ListBackups() ([]backup.BackupFile, error) {
	return s.manager.ListBackups()
}
