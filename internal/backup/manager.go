package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

const (
	filePrefix     = "expense_backup_"
	fileExt        = ".json"
	fileTimeLayout = "20060102_150405"
)

// Location says where an export ended up.
type Location string

const (
	LocationPrimary Location = "primary"
	LocationPrivate Location = "private"
)

// Config points the manager at its directories.
type Config struct {
	// PrivateDir is the application's own backups directory. It is created
	// on demand and is always the last resort.
	PrivateDir string
	// PrimaryDir is the user-visible export directory, usually Downloads.
	// Empty disables it.
	PrimaryDir string
}

// ExportResult describes a successful export.
type ExportResult struct {
	Path     string
	Location Location
	// PrimaryErr is why the primary directory was skipped, nil when it
	// was used or not configured.
	PrimaryErr error
}

// Fallback reports whether the primary directory failed and the private
// one was used instead.
func (r ExportResult) Fallback() bool {
	return r.PrimaryErr != nil
}

// BackupFile is one snapshot found in the private directory.
type BackupFile struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Manager moves snapshots between the ledger and the file system or the
// key-value slot.
type Manager struct {
	cfg    Config
	kv     ledger.KeyValueStore
	now    func() time.Time
	logger *log.Logger
}

func NewManager(cfg Config, kv ledger.KeyValueStore, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Manager{
		cfg:    cfg,
		kv:     kv,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentBackup),
	}
}

// FileName returns the snapshot file name for t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileTimeLayout) + fileExt
}

// Export writes a snapshot to the primary directory and falls back to the
// private directory when that fails. It errors only when both fail.
func (m *Manager) Export(ctx context.Context, expenses []core.Expense, incomes []core.Income) (ExportResult, error) {
	now := m.now()
	data, err := Encode(NewSnapshot(expenses, incomes, now))
	if err != nil {
		return ExportResult{}, err
	}
	name := FileName(now)

	var primaryErr error
	if m.cfg.PrimaryDir != "" {
		path, err := writeFile(m.cfg.PrimaryDir, name, data, false)
		if err == nil {
			m.logExport(ctx, path, LocationPrimary, len(expenses), len(incomes))
			return ExportResult{Path: path, Location: LocationPrimary}, nil
		}
		primaryErr = err
		m.logger.WarnContext(ctx, "Primary export failed, falling back to private directory",
			log.FieldPath, m.cfg.PrimaryDir,
			log.FieldError, err)
	}

	path, err := writeFile(m.cfg.PrivateDir, name, data, true)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %w", ErrExportFailed, errors.Join(primaryErr, err))
	}
	m.logExport(ctx, path, LocationPrivate, len(expenses), len(incomes))
	return ExportResult{Path: path, Location: LocationPrivate, PrimaryErr: primaryErr}, nil
}

// ExportPrivate writes a snapshot to the private directory only.
func (m *Manager) ExportPrivate(ctx context.Context, expenses []core.Expense, incomes []core.Income) (ExportResult, error) {
	now := m.now()
	data, err := Encode(NewSnapshot(expenses, incomes, now))
	if err != nil {
		return ExportResult{}, err
	}
	path, err := writeFile(m.cfg.PrivateDir, FileName(now), data, true)
	if err != nil {
		return ExportResult{}, fmt.Errorf("%w: %w", ErrExportFailed, err)
	}
	m.logExport(ctx, path, LocationPrivate, len(expenses), len(incomes))
	return ExportResult{Path: path, Location: LocationPrivate}, nil
}

func (m *Manager) logExport(ctx context.Context, path string, loc Location, expenses, incomes int) {
	m.logger.InfoContext(ctx, "Backup exported",
		log.FieldPath, path,
		log.FieldLocation, string(loc),
		log.FieldExpenses, expenses,
		log.FieldIncomes, incomes)
}

// ImportFile reads and parses the snapshot at path.
func (m *Manager) ImportFile(ctx context.Context, path string) (Snapshot, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrBackupNotFound, path)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat backup: %w", err)
	}
	if info.IsDir() {
		return Snapshot{}, fmt.Errorf("%w: %s is a directory", ErrBackupNotFound, path)
	}

	s, err := m.ImportReader(ctx, f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	return s, nil
}

// ImportReader parses a snapshot from an already opened stream.
func (m *Manager) ImportReader(ctx context.Context, r io.Reader) (Snapshot, error) {
	s, err := Decode(r)
	if err != nil {
		return Snapshot{}, err
	}
	m.logger.DebugContext(ctx, "Backup parsed",
		log.FieldExpenses, len(s.Expenses),
		log.FieldIncomes, len(s.Incomes),
		log.FieldBackupDate, s.BackupDate)
	return s, nil
}

// ListBackups returns the snapshot files in the private directory, newest
// first. A missing directory yields an empty list.
func (m *Manager) ListBackups() ([]BackupFile, error) {
	entries, err := os.ReadDir(m.cfg.PrivateDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []BackupFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	files := make([]BackupFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), fileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, BackupFile{
			Name:    e.Name(),
			Path:    filepath.Join(m.cfg.PrivateDir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].ModTime.After(files[j].ModTime)
		}
		return files[i].Name > files[j].Name
	})
	return files, nil
}

// SaveSnapshot stores a snapshot in the key-value slot, replacing the
// previous one.
func (m *Manager) SaveSnapshot(ctx context.Context, expenses []core.Expense, incomes []core.Income) error {
	data, err := Encode(NewSnapshot(expenses, incomes, m.now()))
	if err != nil {
		return err
	}
	if err := m.kv.PutValue(ctx, SnapshotKey, data); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the key-value slot. An empty or unparsable slot is
// reported as absent.
func (m *Manager) LoadSnapshot(ctx context.Context) (Snapshot, bool, error) {
	data, ok, err := m.kv.GetValue(ctx, SnapshotKey)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return Snapshot{}, false, nil
	}

	s, err := decodeBytes(data)
	if err != nil {
		m.logger.WarnContext(ctx, "Stored snapshot is unreadable", log.FieldError, err)
		return Snapshot{}, false, nil
	}
	return s, true, nil
}

// writeFile writes data to dir/name through a temporary file so readers never
// see a partial document.
func writeFile(dir, name string, data []byte, mkdir bool) (string, error) {
	if dir == "" {
		return "", errors.New("directory not configured")
	}
	if mkdir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("finalize backup: %w", err)
	}
	return path, nil
}
