package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
)

var testNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.Local)

func testEnv(t *testing.T) (env, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		DataBackend:   "sqlite",
		SQLiteDBPath:  filepath.Join(dir, "fintrack.db"),
		DataDir:       dir,
		DownloadsDir:  filepath.Join(dir, "downloads"),
		ChangeBuffer:  8,
		LogLevel:      "error",
		LogFormat:     "text",
		ViewCacheSize: 4,
	}
	require.NoError(t, os.MkdirAll(cfg.DownloadsDir, 0o755))
	return env{
		loadConfig: func() (*config.Config, error) { return cfg, nil },
		newLogger: func(*config.Config) *log.Logger {
			return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
		},
		now: func() time.Time { return testNow },
	}, cfg
}

// run executes one invocation and returns what it printed.
func run(t *testing.T, e env, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	s := &session{env: e}
	root := newRootCmd(s)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	require.NoError(t, s.close())
	return out.String(), err
}

func TestExpenseAndSummary(t *testing.T) {
	e, _ := testEnv(t)

	out, err := run(t, e, "", "expense", "add", "--amount", "45,50", "--category", "Groceries", "--description", "market")
	require.NoError(t, err)
	assert.Contains(t, out, "Added expense 1: 45.50 Groceries on 2024-03-15")

	_, err = run(t, e, "", "income", "add", "-a", "1800", "-s", "Salary", "--date", "2024-03-01")
	require.NoError(t, err)

	out, err = run(t, e, "", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary for 2024-03")
	assert.Contains(t, out, "1800.00")
	assert.Contains(t, out, "1754.50")
	assert.Contains(t, out, "Groceries")

	out, err = run(t, e, "", "summary", "--next")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary for 2024-04")
	assert.NotContains(t, out, "By category")

	out, err = run(t, e, "", "summary", "--month", "1", "--prev")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary for 2023-12")
}

func TestSummaryRejectsBadFlags(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "", "summary", "--next", "--prev")
	require.Error(t, err)

	_, err = run(t, e, "", "summary", "--month", "13")
	require.ErrorIs(t, err, core.ErrInvalidMonth)
}

func TestExpenseUpdateDeleteList(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "", "expense", "add", "-a", "10", "-c", "Travel")
	require.NoError(t, err)

	_, err = run(t, e, "", "expense", "update", "1", "-a", "12", "-c", "Health", "--date", "2024-03-20")
	require.NoError(t, err)

	out, err := run(t, e, "", "expense", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Health")
	assert.Contains(t, out, "12.00")

	out, err = run(t, e, "", "expense", "list", "--category", "Travel")
	require.NoError(t, err)
	assert.Contains(t, out, "No expenses.")

	_, err = run(t, e, "", "expense", "delete", "1")
	require.NoError(t, err)

	out, err = run(t, e, "", "expense", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No expenses.")
}

func TestExpenseAddRejectsInvalidInput(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "", "expense", "add", "--amount=-4", "-c", "Travel")
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, e, "", "expense", "add", "-a", "4", "-c", "Yachts")
	require.ErrorIs(t, err, core.ErrUnknownCategory)

	_, err = run(t, e, "", "expense", "add", "-a", "4", "-c", "Travel", "--date", "15/03/2024")
	require.Error(t, err)

	_, err = run(t, e, "", "expense", "delete", "abc")
	require.Error(t, err)
}

func TestCategoryCommands(t *testing.T) {
	e, _ := testEnv(t)

	out, err := run(t, e, "", "category", "add", "Pets")
	require.NoError(t, err)
	assert.Contains(t, out, `Added category "Pets"`)

	out, err = run(t, e, "", "category", "add", "Pets")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	_, err = run(t, e, "", "expense", "add", "-a", "30", "-c", "Pets")
	require.NoError(t, err)

	out, err = run(t, e, "", "category", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Pets (custom)")
	assert.Contains(t, out, "Groceries\n")

	_, err = run(t, e, "", "category", "remove", "Pets")
	require.NoError(t, err)

	out, err = run(t, e, "", "category", "orphans")
	require.NoError(t, err)
	assert.Equal(t, "Pets\n", out)
}

func TestExportImportRoundTrip(t *testing.T) {
	src, srcCfg := testEnv(t)
	_, err := run(t, src, "", "expense", "add", "-a", "20", "-c", "Restaurant")
	require.NoError(t, err)

	out, err := run(t, src, "", "export")
	require.NoError(t, err)
	assert.Contains(t, out, srcCfg.DownloadsDir)

	out, err = run(t, src, "", "export", "--private")
	require.NoError(t, err)
	assert.Contains(t, out, srcCfg.BackupDir())

	out, err = run(t, src, "", "backups")
	require.NoError(t, err)
	assert.Contains(t, out, "expense_backup_")

	files, err := filepath.Glob(filepath.Join(srcCfg.DownloadsDir, "expense_backup_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	dst, _ := testEnv(t)
	out, err = run(t, dst, "n\n", "import", files[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Backup contains 1 expenses and 0 incomes")
	assert.Contains(t, out, "Import cancelled.")

	out, err = run(t, dst, "", "import", "--yes", files[0])
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 1 expenses and 0 incomes")

	out, err = run(t, dst, "", "expense", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Restaurant")
}

func TestRestoreLatest(t *testing.T) {
	e, _ := testEnv(t)

	out, err := run(t, e, "", "restore-latest")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored snapshot.")

	_, err = run(t, e, "", "income", "add", "-a", "100", "-s", "Gift")
	require.NoError(t, err)
	_, err = run(t, e, "", "export", "--private")
	require.NoError(t, err)

	out, err = run(t, e, "", "restore-latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 0 expenses and 1 incomes")
}

func TestWatchRequiresBroker(t *testing.T) {
	e, _ := testEnv(t)

	_, err := run(t, e, "", "watch")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMQP_URL")
}

func TestExecuteClosesOnFailure(t *testing.T) {
	e, cfg := testEnv(t)

	err := execute(context.Background(), e, []string{"expense", "add", "-a", "0", "-c", "Other"}, io.Discard, io.Discard)
	require.ErrorIs(t, err, core.ErrInvalidAmount)

	// The database is released, so a new invocation can open it.
	err = execute(context.Background(), e, []string{"category", "list"}, io.Discard, io.Discard)
	require.NoError(t, err)
	assert.FileExists(t, cfg.SQLiteDBPath)
}
