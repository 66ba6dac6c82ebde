package backend

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
)

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	require.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	require.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"})
	require.NoError(t, err)
	assert.Equal(t, Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, cfg)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown type", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.Equal(t, tt.wantErr, err != nil, "Validate() error = %v", err)
		})
	}
}

func TestGetBackendTypeStrings(t *testing.T) {
	assert.Equal(t, []string{"sqlite", "memory"}, GetBackendTypeStrings())
}

func TestCreateBackend_PublishesOnBus(t *testing.T) {
	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "ledger.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			bus := events.NewBus()
			var changes []events.Change
			bus.Subscribe(func(c events.Change) { changes = append(changes, c) })

			res, err := NewFactory(bus, quietLogger()).CreateBackend(context.Background(), cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = res.Cleanup() })

			at := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
			id, err := res.Store.InsertExpense(context.Background(), core.NewExpense(3, "Other", "", at))
			require.NoError(t, err)

			require.Len(t, changes, 1)
			assert.Equal(t, events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: id}, changes[0])
		})
	}
}

func TestCreateBackend_RejectsInvalidConfig(t *testing.T) {
	_, err := NewFactory(nil, nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	require.Error(t, err)
}
