package categories

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/ledger/memory"
	"fintrack/internal/log"
)

// RegistryTestSuite exercises the registry against the in-memory store.
type RegistryTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	bus      *events.Bus
	registry *Registry
}

func (s *RegistryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = events.NewBus()
	s.store = memory.New(s.bus)
	s.registry = NewRegistry(s.store, quietLogger())
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func (s *RegistryTestSuite) TestSeedDefaults_EmptyRegistry() {
	seeded, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	s.True(seeded)

	cats, err := s.registry.List(s.ctx)
	s.Require().NoError(err)
	s.Len(cats, 10)
	for _, c := range cats {
		s.False(c.IsCustom, "default %s must not be custom", c.Name)
	}

	names, err := s.registry.ListNames(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{
		"Cab Ride", "Entertainment", "Gifts", "Groceries", "Health",
		"Other", "Restaurant", "Shopping", "Travel", "Utilities",
	}, names)
}

func (s *RegistryTestSuite) TestSeedDefaults_SkipsNonEmptyRegistry() {
	added, err := s.registry.Add(s.ctx, "Books")
	s.Require().NoError(err)
	s.True(added)

	seeded, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	s.False(seeded)

	names, err := s.registry.ListNames(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Books"}, names)
}

func (s *RegistryTestSuite) TestSeedDefaults_Twice() {
	_, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	seeded, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	s.False(seeded)

	n, err := s.store.CountCategories(s.ctx)
	s.Require().NoError(err)
	s.Equal(10, n)
}

func (s *RegistryTestSuite) TestAdd_TrimsAndMarksCustom() {
	added, err := s.registry.Add(s.ctx, "  Pets  ")
	s.Require().NoError(err)
	s.True(added)

	cats, err := s.registry.List(s.ctx)
	s.Require().NoError(err)
	s.Equal([]core.Category{{Name: "Pets", IsCustom: true}}, cats)
}

func (s *RegistryTestSuite) TestAdd_BlankIsIgnored() {
	for _, name := range []string{"", "   ", "\t"} {
		added, err := s.registry.Add(s.ctx, name)
		s.NoError(err)
		s.False(added)
	}

	n, err := s.store.CountCategories(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *RegistryTestSuite) TestAdd_DuplicateIsIgnored() {
	_, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)

	added, err := s.registry.Add(s.ctx, "Groceries")
	s.Require().NoError(err)
	s.False(added)

	// Names are case-sensitive.
	added, err = s.registry.Add(s.ctx, "groceries")
	s.Require().NoError(err)
	s.True(added)

	n, err := s.store.CountCategories(s.ctx)
	s.Require().NoError(err)
	s.Equal(11, n)
}

func (s *RegistryTestSuite) TestRemove_KeepsExpensesAndReportsOrphans() {
	_, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)

	at := time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	_, err = s.store.InsertExpense(s.ctx, core.NewExpense(30, "Travel", "train", at))
	s.Require().NoError(err)
	_, err = s.store.InsertExpense(s.ctx, core.NewExpense(12, "Groceries", "", at))
	s.Require().NoError(err)

	s.Require().NoError(s.registry.Remove(s.ctx, "Travel"))

	ok, err := s.registry.Exists(s.ctx, "Travel")
	s.Require().NoError(err)
	s.False(ok)

	all, err := s.store.AllExpenses(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 2)

	orphans, err := s.registry.OrphanedCategories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Travel"}, orphans)
}

func (s *RegistryTestSuite) TestRemove_MissingNameIsNoop() {
	var changes int
	s.bus.Subscribe(func(events.Change) { changes++ })

	s.NoError(s.registry.Remove(s.ctx, "Nope"))
	s.Zero(changes)
}

func (s *RegistryTestSuite) TestOrphanedCategories_NoneWhenAllRegistered() {
	_, err := s.registry.SeedDefaults(s.ctx)
	s.Require().NoError(err)

	orphans, err := s.registry.OrphanedCategories(s.ctx)
	s.Require().NoError(err)
	s.Empty(orphans)
}

func (s *RegistryTestSuite) TestReadsAreNotCached() {
	names, err := s.registry.ListNames(s.ctx)
	s.Require().NoError(err)
	s.Empty(names)

	// A write that bypasses the registry is visible on the next read.
	s.Require().NoError(s.store.InsertCategory(s.ctx, core.Category{Name: "Direct"}))

	names, err = s.registry.ListNames(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Direct"}, names)
}

type failingRepo struct {
	ledger.CategoryRepository
	err error
}

func (f failingRepo) CountCategories(context.Context) (int, error)        { return 0, f.err }
func (f failingRepo) CategoryExists(context.Context, string) (bool, error) { return false, f.err }
func (f failingRepo) Categories(context.Context) ([]core.Category, error)  { return nil, f.err }

func TestRegistryWrapsStoreErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	r := NewRegistry(failingRepo{err: boom}, quietLogger())
	ctx := context.Background()

	if _, err := r.SeedDefaults(ctx); !errors.Is(err, boom) {
		t.Errorf("SeedDefaults error = %v, want wrapping %v", err, boom)
	}
	if _, err := r.Add(ctx, "Books"); !errors.Is(err, boom) {
		t.Errorf("Add error = %v, want wrapping %v", err, boom)
	}
	if _, err := r.ListNames(ctx); !errors.Is(err, boom) {
		t.Errorf("ListNames error = %v, want wrapping %v", err, boom)
	}
}
