package memory

import (
	"context"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/events"
)

// Store keeps the whole ledger in process. It has the same observable
// semantics as the SQLite repository and backs the "memory" backend.
type Store struct {
	mu       sync.RWMutex
	bus      events.Publisher
	nextID   int64
	expenses map[int64]core.Expense
	incomes  map[int64]core.Income
	cats     map[string]core.Category
	values   map[string][]byte
}

// New returns an empty store that reports committed writes to bus (may be nil).
func New(bus events.Publisher) *Store {
	return &Store{
		bus:      bus,
		expenses: make(map[int64]core.Expense),
		incomes:  make(map[int64]core.Income),
		cats:     make(map[string]core.Category),
		values:   make(map[string][]byte),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) publish(c events.Change) {
	if s.bus != nil {
		s.bus.Publish(c)
	}
}

// allocID must be called with the write lock held.
func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

// InsertExpense implements ledger.ExpenseRepository
func (s *Store) InsertExpense(_ context.Context, e core.Expense) (int64, error) {
	s.mu.Lock()
	e.ID = s.allocID()
	s.expenses[e.ID] = e
	s.mu.Unlock()

	s.publish(events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: e.ID})
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	_, ok := s.expenses[e.ID]
	if ok {
		s.expenses[e.ID] = e
	}
	s.mu.Unlock()

	if ok {
		s.publish(events.Change{Kind: events.KindExpense, Op: events.OpUpdate, ID: e.ID})
	}
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, e core.Expense) error {
	s.mu.Lock()
	_, ok := s.expenses[e.ID]
	delete(s.expenses, e.ID)
	s.mu.Unlock()

	if ok {
		s.publish(events.Change{Kind: events.KindExpense, Op: events.OpDelete, ID: e.ID})
	}
	return nil
}

func (s *Store) ExpensesByMonth(_ context.Context, month, year int) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool {
		return e.Month == month && e.Year == year
	}), nil
}

func (s *Store) TotalExpenseByMonth(ctx context.Context, month, year int) (core.Total, error) {
	list, _ := s.ExpensesByMonth(ctx, month, year)
	if len(list) == 0 {
		return core.Total{}, nil
	}
	amounts := make([]float64, len(list))
	for i, e := range list {
		amounts[i] = e.Amount
	}
	return core.SomeTotal(core.SumAmounts(amounts...)), nil
}

func (s *Store) AllExpenses(_ context.Context) ([]core.Expense, error) {
	return s.filterExpenses(func(core.Expense) bool { return true }), nil
}

func (s *Store) ExpensesByCategoryMonth(ctx context.Context, month, year int) ([]core.CategoryTotal, error) {
	list, _ := s.ExpensesByMonth(ctx, month, year)

	grouped := map[string][]float64{}
	var order []string
	for _, e := range list {
		if _, seen := grouped[e.Category]; !seen {
			order = append(order, e.Category)
		}
		grouped[e.Category] = append(grouped[e.Category], e.Amount)
	}

	out := make([]core.CategoryTotal, 0, len(order))
	for _, name := range order {
		out = append(out, core.CategoryTotal{Category: name, Total: core.SumAmounts(grouped[name]...)})
	}
	return out, nil
}

func (s *Store) ExpensesByCategoryName(_ context.Context, category string, month, year int) ([]core.Expense, error) {
	return s.filterExpenses(func(e core.Expense) bool {
		return e.Category == category && e.Month == month && e.Year == year
	}), nil
}

func (s *Store) filterExpenses(keep func(core.Expense) bool) []core.Expense {
	s.mu.RLock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[i].ID, out[j].Date, out[j].ID)
	})
	return out
}

// InsertIncome implements ledger.IncomeRepository
func (s *Store) InsertIncome(_ context.Context, in core.Income) (int64, error) {
	s.mu.Lock()
	in.ID = s.allocID()
	s.incomes[in.ID] = in
	s.mu.Unlock()

	s.publish(events.Change{Kind: events.KindIncome, Op: events.OpCreate, ID: in.ID})
	return in.ID, nil
}

func (s *Store) UpdateIncome(_ context.Context, in core.Income) error {
	s.mu.Lock()
	_, ok := s.incomes[in.ID]
	if ok {
		s.incomes[in.ID] = in
	}
	s.mu.Unlock()

	if ok {
		s.publish(events.Change{Kind: events.KindIncome, Op: events.OpUpdate, ID: in.ID})
	}
	return nil
}

func (s *Store) DeleteIncome(_ context.Context, in core.Income) error {
	s.mu.Lock()
	_, ok := s.incomes[in.ID]
	delete(s.incomes, in.ID)
	s.mu.Unlock()

	if ok {
		s.publish(events.Change{Kind: events.KindIncome, Op: events.OpDelete, ID: in.ID})
	}
	return nil
}

func (s *Store) IncomesByMonth(_ context.Context, month, year int) ([]core.Income, error) {
	return s.filterIncomes(func(in core.Income) bool {
		return in.Month == month && in.Year == year
	}), nil
}

func (s *Store) TotalIncomeByMonth(ctx context.Context, month, year int) (core.Total, error) {
	list, _ := s.IncomesByMonth(ctx, month, year)
	if len(list) == 0 {
		return core.Total{}, nil
	}
	amounts := make([]float64, len(list))
	for i, in := range list {
		amounts[i] = in.Amount
	}
	return core.SomeTotal(core.SumAmounts(amounts...)), nil
}

func (s *Store) AllIncomes(_ context.Context) ([]core.Income, error) {
	return s.filterIncomes(func(core.Income) bool { return true }), nil
}

func (s *Store) filterIncomes(keep func(core.Income) bool) []core.Income {
	s.mu.RLock()
	out := make([]core.Income, 0)
	for _, in := range s.incomes {
		if keep(in) {
			out = append(out, in)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return newerFirst(out[i].Date, out[i].ID, out[j].Date, out[j].ID)
	})
	return out
}

// AppendLedger implements ledger.LedgerAppender
func (s *Store) AppendLedger(_ context.Context, expenses []core.Expense, incomes []core.Income) error {
	if len(expenses) == 0 && len(incomes) == 0 {
		return nil
	}

	s.mu.Lock()
	for _, e := range expenses {
		e.ID = s.allocID()
		s.expenses[e.ID] = e
	}
	for _, in := range incomes {
		in.ID = s.allocID()
		s.incomes[in.ID] = in
	}
	s.mu.Unlock()

	s.publish(events.Change{Kind: events.KindLedger, Op: events.OpAppend})
	return nil
}

// InsertCategory implements ledger.CategoryRepository
func (s *Store) InsertCategory(ctx context.Context, c core.Category) error {
	return s.InsertCategories(ctx, []core.Category{c})
}

func (s *Store) InsertCategories(_ context.Context, cs []core.Category) error {
	var added []string
	s.mu.Lock()
	for _, c := range cs {
		if _, exists := s.cats[c.Name]; exists {
			continue
		}
		s.cats[c.Name] = c
		added = append(added, c.Name)
	}
	s.mu.Unlock()

	for _, name := range added {
		s.publish(events.Change{Kind: events.KindCategory, Op: events.OpCreate, Name: name})
	}
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, name string) error {
	s.mu.Lock()
	_, ok := s.cats[name]
	delete(s.cats, name)
	s.mu.Unlock()

	if ok {
		s.publish(events.Change{Kind: events.KindCategory, Op: events.OpDelete, Name: name})
	}
	return nil
}

func (s *Store) Categories(_ context.Context) ([]core.Category, error) {
	s.mu.RLock()
	out := make([]core.Category, 0, len(s.cats))
	for _, c := range s.cats {
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CategoryExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cats[name]
	return ok, nil
}

func (s *Store) CountCategories(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cats), nil
}

func (s *Store) ExpenseCategoryNames(_ context.Context) ([]string, error) {
	s.mu.RLock()
	seen := map[string]struct{}{}
	for _, e := range s.expenses {
		seen[e.Category] = struct{}{}
	}
	s.mu.RUnlock()

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// PutValue implements ledger.KeyValueStore
func (s *Store) PutValue(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) GetValue(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func newerFirst(dateA, idA, dateB, idB int64) bool {
	if dateA != dateB {
		return dateA > dateB
	}
	return idA > idB
}
