package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/ledgertest"
)

func TestSQLiteRepositoryContract(t *testing.T) {
	suite.Run(t, &ledgertest.StoreSuite{
		Open: func(bus *events.Bus) ledger.Store {
			repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), bus)
			require.NoError(t, err)
			return repo
		},
	})
}

func TestSQLiteRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "ledger.db")

	repo, err := NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)

	at := time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)
	id, err := repo.InsertExpense(ctx, core.NewExpense(45.50, "Groceries", "market", at))
	require.NoError(t, err)
	require.NoError(t, repo.InsertCategory(ctx, core.Category{Name: "Groceries"}))
	require.NoError(t, repo.PutValue(ctx, "backup_data", []byte("{}")))
	require.NoError(t, repo.Close())

	// Reopening runs migrations again; they must be a no-op.
	repo, err = NewSQLiteRepository(dbPath, nil)
	require.NoError(t, err)
	defer repo.Close()

	got, err := repo.ExpensesByMonth(ctx, 3, 2024)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, id, got[0].ID)
	require.Equal(t, at.UnixMilli(), got[0].Date)

	ok, err := repo.CategoryExists(ctx, "Groceries")
	require.NoError(t, err)
	require.True(t, ok)

	v, ok, err := repo.GetValue(ctx, "backup_data")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "{}", string(v))
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")

	v, dirty, err := SchemaVersion(dbPath)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Zero(t, v)

	first, err := RunMigrations(dbPath)
	require.NoError(t, err)
	second, err := RunMigrations(dbPath)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, uint(2), second)

	v, dirty, err = SchemaVersion(dbPath)
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(2), v)
}

func TestNewSQLiteRepositoryRefusesDirtySchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "dirty.db")
	_, err := RunMigrations(dbPath)
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE schema_migrations SET dirty = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewSQLiteRepository(dbPath, nil)
	require.ErrorIs(t, err, ErrDirtySchema)
	require.ErrorContains(t, err, "at version 2")
}

func TestCloseNilDB(t *testing.T) {
	var r SQLiteRepository
	require.NoError(t, r.Close())
}
