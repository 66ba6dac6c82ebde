// Package ledgertest holds the behavioural contract every ledger.Store
// implementation must satisfy. Backends run it from their own tests.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
)

// Factory opens a fresh, empty store wired to bus.
type Factory func(bus *events.Bus) ledger.Store

// StoreSuite exercises a ledger.Store through its public contract.
type StoreSuite struct {
	suite.Suite
	Open Factory

	ctx     context.Context
	bus     *events.Bus
	store   ledger.Store
	changes []events.Change
	mu      sync.Mutex
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = events.NewBus()
	s.changes = nil
	s.bus.Subscribe(func(c events.Change) {
		s.mu.Lock()
		s.changes = append(s.changes, c)
		s.mu.Unlock()
	})
	s.store = s.Open(s.bus)
}

func (s *StoreSuite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func (s *StoreSuite) recorded() []events.Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Change(nil), s.changes...)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) insertExpense(amount float64, category string, at time.Time) core.Expense {
	e := core.NewExpense(amount, category, "", at)
	id, err := s.store.InsertExpense(s.ctx, e)
	s.Require().NoError(err)
	e.ID = id
	return e
}

func (s *StoreSuite) insertIncome(amount float64, source string, at time.Time) core.Income {
	in := core.NewIncome(amount, source, "", at)
	id, err := s.store.InsertIncome(s.ctx, in)
	s.Require().NoError(err)
	in.ID = id
	return in
}

func (s *StoreSuite) TestInsertThenByMonthReturnsRecord() {
	e := core.NewExpense(45.50, "Groceries", "market", day(2024, time.March, 15))
	e.ID = 999 // ignored on insert
	id, err := s.store.InsertExpense(s.ctx, e)
	s.Require().NoError(err)
	s.NotZero(id)
	s.NotEqual(int64(999), id)

	got, err := s.store.ExpensesByMonth(s.ctx, 3, 2024)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	e.ID = id
	s.Equal(e, got[0])

	total, err := s.store.TotalExpenseByMonth(s.ctx, 3, 2024)
	s.Require().NoError(err)
	s.True(total.Valid)
	s.InDelta(45.50, total.Amount, 1e-9)

	april, err := s.store.ExpensesByMonth(s.ctx, 4, 2024)
	s.Require().NoError(err)
	s.Empty(april)
}

func (s *StoreSuite) TestTotalByMonthEmptyIsNoValue() {
	total, err := s.store.TotalExpenseByMonth(s.ctx, 1, 2030)
	s.Require().NoError(err)
	s.False(total.Valid)
	s.Zero(total.Value())

	income, err := s.store.TotalIncomeByMonth(s.ctx, 1, 2030)
	s.Require().NoError(err)
	s.False(income.Valid)
}

func (s *StoreSuite) TestTotalMatchesSumOfByMonth() {
	s.insertExpense(10.25, "Groceries", day(2024, time.May, 1))
	s.insertExpense(3.10, "Travel", day(2024, time.May, 20))
	s.insertExpense(7.65, "Groceries", day(2024, time.May, 31))
	s.insertExpense(100, "Groceries", day(2024, time.June, 1))

	list, err := s.store.ExpensesByMonth(s.ctx, 5, 2024)
	s.Require().NoError(err)
	sum := 0.0
	for _, e := range list {
		sum += e.Amount
	}

	total, err := s.store.TotalExpenseByMonth(s.ctx, 5, 2024)
	s.Require().NoError(err)
	s.True(total.Valid)
	s.InDelta(sum, total.Amount, 1e-9)
	s.InDelta(21.0, total.Amount, 1e-9)
}

func (s *StoreSuite) TestByMonthOrderedByDateDescending() {
	a := s.insertExpense(1, "Other", day(2024, time.July, 2))
	b := s.insertExpense(2, "Other", day(2024, time.July, 20))
	c := s.insertExpense(3, "Other", day(2024, time.July, 10))

	got, err := s.store.ExpensesByMonth(s.ctx, 7, 2024)
	s.Require().NoError(err)
	s.Equal([]int64{b.ID, c.ID, a.ID}, ids(got))

	all, err := s.store.AllExpenses(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int64{b.ID, c.ID, a.ID}, ids(all))
}

func (s *StoreSuite) TestUpdateReplacesWholeRecord() {
	e := s.insertExpense(12, "Restaurant", day(2024, time.August, 5))

	e.Amount = 15
	e.Category = "Travel"
	e.Description = "changed"
	e.SetDate(day(2024, time.September, 1))
	s.Require().NoError(s.store.UpdateExpense(s.ctx, e))

	august, err := s.store.ExpensesByMonth(s.ctx, 8, 2024)
	s.Require().NoError(err)
	s.Empty(august)

	september, err := s.store.ExpensesByMonth(s.ctx, 9, 2024)
	s.Require().NoError(err)
	s.Require().Len(september, 1)
	s.Equal(e, september[0])
}

func (s *StoreSuite) TestUpdateAndDeleteMissingIDAreNoops() {
	existing := s.insertExpense(5, "Gifts", day(2024, time.October, 1))
	before := len(s.recorded())

	ghost := core.NewExpense(1, "Gifts", "", day(2024, time.October, 2))
	ghost.ID = existing.ID + 1000
	s.NoError(s.store.UpdateExpense(s.ctx, ghost))
	s.NoError(s.store.DeleteExpense(s.ctx, ghost))

	ghostIncome := core.NewIncome(1, "Salary", "", day(2024, time.October, 2))
	ghostIncome.ID = 4242
	s.NoError(s.store.UpdateIncome(s.ctx, ghostIncome))
	s.NoError(s.store.DeleteIncome(s.ctx, ghostIncome))

	all, err := s.store.AllExpenses(s.ctx)
	s.Require().NoError(err)
	s.Equal([]core.Expense{existing}, all)
	s.Len(s.recorded(), before, "no-op writes must not notify")
}

func (s *StoreSuite) TestDeleteRemovesRecord() {
	keep := s.insertIncome(1000, "Salary", day(2024, time.November, 1))
	drop := s.insertIncome(50, "Gift", day(2024, time.November, 2))

	s.Require().NoError(s.store.DeleteIncome(s.ctx, drop))

	got, err := s.store.IncomesByMonth(s.ctx, 11, 2024)
	s.Require().NoError(err)
	s.Equal([]core.Income{keep}, got)

	total, err := s.store.TotalIncomeByMonth(s.ctx, 11, 2024)
	s.Require().NoError(err)
	s.InDelta(1000, total.Value(), 1e-9)
}

func (s *StoreSuite) TestIncomeQueries() {
	newer := s.insertIncome(200, "Freelance", day(2024, time.December, 20))
	older := s.insertIncome(1800, "Salary", day(2024, time.December, 1))
	s.insertIncome(1800, "Salary", day(2025, time.January, 1))

	got, err := s.store.IncomesByMonth(s.ctx, 12, 2024)
	s.Require().NoError(err)
	s.Equal([]core.Income{newer, older}, got)

	all, err := s.store.AllIncomes(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3)
	s.Equal(2025, all[0].Year)
}

func (s *StoreSuite) TestExpensesByCategoryMonth() {
	s.insertExpense(10, "Groceries", day(2024, time.March, 1))
	s.insertExpense(5.5, "Groceries", day(2024, time.March, 2))
	s.insertExpense(20, "Travel", day(2024, time.March, 3))
	s.insertExpense(99, "Travel", day(2024, time.April, 3))

	got, err := s.store.ExpensesByCategoryMonth(s.ctx, 3, 2024)
	s.Require().NoError(err)
	sort.Slice(got, func(i, j int) bool { return got[i].Category < got[j].Category })

	s.Require().Len(got, 2)
	s.Equal("Groceries", got[0].Category)
	s.InDelta(15.5, got[0].Total, 1e-9)
	s.Equal("Travel", got[1].Category)
	s.InDelta(20, got[1].Total, 1e-9)

	empty, err := s.store.ExpensesByCategoryMonth(s.ctx, 1, 1999)
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *StoreSuite) TestExpensesByCategoryName() {
	first := s.insertExpense(10, "Health", day(2024, time.February, 1))
	second := s.insertExpense(11, "Health", day(2024, time.February, 9))
	s.insertExpense(12, "Other", day(2024, time.February, 5))
	s.insertExpense(13, "Health", day(2023, time.February, 5))

	got, err := s.store.ExpensesByCategoryName(s.ctx, "Health", 2, 2024)
	s.Require().NoError(err)
	s.Equal([]core.Expense{second, first}, got)
}

func (s *StoreSuite) TestConcurrentInsertsGetDistinctIDs() {
	const n = 40
	var wg sync.WaitGroup
	idsCh := make(chan int64, n)
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.store.InsertExpense(s.ctx, core.NewExpense(float64(i+1), "Other", "", day(2024, time.January, 1+i%28)))
			if err != nil {
				errCh <- err
				return
			}
			idsCh <- id
		}(i)
	}
	wg.Wait()
	close(idsCh)
	close(errCh)

	for err := range errCh {
		s.Require().NoError(err)
	}
	seen := map[int64]bool{}
	for id := range idsCh {
		s.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	s.Len(seen, n)
}

func (s *StoreSuite) TestAppendLedgerAssignsFreshIDs() {
	existing := s.insertExpense(1, "Other", day(2024, time.May, 1))

	incoming := core.NewExpense(2, "Travel", "imported", day(2024, time.May, 2))
	incoming.ID = existing.ID
	income := core.NewIncome(3, "Salary", "imported", day(2024, time.May, 3))
	income.ID = existing.ID

	s.Require().NoError(s.store.AppendLedger(s.ctx, []core.Expense{incoming}, []core.Income{income}))

	all, err := s.store.AllExpenses(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Contains(all, existing, "existing record must survive untouched")
	s.NotEqual(all[0].ID, all[1].ID)

	incomes, err := s.store.AllIncomes(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(incomes, 1)
	s.Equal("imported", incomes[0].Description)
}

func (s *StoreSuite) TestCategoryInsertIgnoresDuplicates() {
	s.Require().NoError(s.store.InsertCategory(s.ctx, core.Category{Name: "Books", IsCustom: true}))
	s.Require().NoError(s.store.InsertCategory(s.ctx, core.Category{Name: "Books", IsCustom: false}))
	s.Require().NoError(s.store.InsertCategory(s.ctx, core.Category{Name: "books", IsCustom: true}))

	cats, err := s.store.Categories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]core.Category{{Name: "Books", IsCustom: true}, {Name: "books", IsCustom: true}}, cats)

	n, err := s.store.CountCategories(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *StoreSuite) TestCategoriesOrderedAndDeletable() {
	s.Require().NoError(s.store.InsertCategories(s.ctx, []core.Category{
		{Name: "Utilities"}, {Name: "Cab Ride"}, {Name: "Gifts"},
	}))

	cats, err := s.store.Categories(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Cab Ride", "Gifts", "Utilities"}, names(cats))

	s.Require().NoError(s.store.DeleteCategory(s.ctx, "Gifts"))
	s.Require().NoError(s.store.DeleteCategory(s.ctx, "Nope"))

	ok, err := s.store.CategoryExists(s.ctx, "Gifts")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.store.CategoryExists(s.ctx, "Cab Ride")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *StoreSuite) TestDeletingCategoryKeepsExpenses() {
	s.Require().NoError(s.store.InsertCategory(s.ctx, core.Category{Name: "Travel"}))
	e := s.insertExpense(300, "Travel", day(2024, time.June, 6))

	s.Require().NoError(s.store.DeleteCategory(s.ctx, "Travel"))

	all, err := s.store.AllExpenses(s.ctx)
	s.Require().NoError(err)
	s.Equal([]core.Expense{e}, all)

	referenced, err := s.store.ExpenseCategoryNames(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Travel"}, referenced)
}

func (s *StoreSuite) TestKeyValueSlot() {
	_, ok, err := s.store.GetValue(s.ctx, "backup_data")
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.store.PutValue(s.ctx, "backup_data", []byte(`{"v":1}`)))
	s.Require().NoError(s.store.PutValue(s.ctx, "backup_data", []byte(`{"v":2}`)))

	v, ok, err := s.store.GetValue(s.ctx, "backup_data")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(`{"v":2}`, string(v))
}

func (s *StoreSuite) TestWritesNotifyAfterCommit() {
	var seenDuringPublish []core.Expense
	s.bus.Subscribe(func(c events.Change) {
		if c.Kind == events.KindExpense && c.Op == events.OpCreate {
			list, err := s.store.AllExpenses(s.ctx)
			s.NoError(err)
			seenDuringPublish = list
		}
	})

	e := s.insertExpense(8, "Other", day(2024, time.March, 3))
	s.Equal([]core.Expense{e}, seenDuringPublish, "subscribers must observe the committed write")

	e.Amount = 9
	s.Require().NoError(s.store.UpdateExpense(s.ctx, e))
	s.Require().NoError(s.store.DeleteExpense(s.ctx, e))

	var ops []events.Op
	for _, c := range s.recorded() {
		if c.Kind == events.KindExpense {
			ops = append(ops, c.Op)
		}
	}
	s.Equal([]events.Op{events.OpCreate, events.OpUpdate, events.OpDelete}, ops)
}

func ids(list []core.Expense) []int64 {
	out := make([]int64, len(list))
	for i, e := range list {
		out[i] = e.ID
	}
	return out
}

func names(cats []core.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}
