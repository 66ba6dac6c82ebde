// Package aggregator derives the monthly summary views from the ledger and
// keeps them current as the ledger changes.
package aggregator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/ledger"
	"fintrack/internal/log"
)

// Source is the read side of the ledger the aggregator queries.
type Source interface {
	ExpensesByMonth(ctx context.Context, month, year int) ([]core.Expense, error)
	TotalExpenseByMonth(ctx context.Context, month, year int) (core.Total, error)
	ExpensesByCategoryMonth(ctx context.Context, month, year int) ([]core.CategoryTotal, error)
	ExpensesByCategoryName(ctx context.Context, category string, month, year int) ([]core.Expense, error)
	IncomesByMonth(ctx context.Context, month, year int) ([]core.Income, error)
	TotalIncomeByMonth(ctx context.Context, month, year int) (core.Total, error)
}

var _ Source = (ledger.Store)(nil)

// Subscriber is anything that can deliver store change notifications.
type Subscriber interface {
	Subscribe(fn func(events.Change)) (unsubscribe func())
}

// MonthView is everything shown for one month.
type MonthView struct {
	Cursor         core.Cursor
	Expenses       []core.Expense
	Incomes        []core.Income
	TotalExpense   core.Total
	TotalIncome    core.Total
	CategoryTotals []core.CategoryTotal
}

// Balance is income minus expenses; months without records count as zero.
func (v MonthView) Balance() float64 {
	return core.Balance(v.TotalIncome, v.TotalExpense)
}

func (v MonthView) clone() MonthView {
	v.Expenses = slices.Clone(v.Expenses)
	v.Incomes = slices.Clone(v.Incomes)
	v.CategoryTotals = slices.Clone(v.CategoryTotals)
	return v
}

type options struct {
	now       func() time.Time
	cacheSize int
	cacheTTL  time.Duration
	logger    *log.Logger
}

// Option configures an Aggregator.
type Option func(*options)

// WithClock sets the clock that picks the initial month.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCacheSize bounds how many month views are memoized. Zero disables the memo.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithCacheTTL expires memoized views after ttl. Zero keeps them until the
// next ledger change.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Aggregator holds the selected month and its derived view. Every cursor
// move and every ledger change triggers a full recompute; the views are
// never written back to the store.
type Aggregator struct {
	src    Source
	logger *log.Logger

	mu     sync.Mutex // serializes recomputes and guards cursor and view
	cursor core.Cursor
	view   MonthView

	gen      atomic.Uint64              // bumped on every ledger change
	memo     *cache.LRUCache[memoEntry] // nil when disabled
	sweeper  *cache.Manager
	detach   func()
	subsMu   sync.Mutex
	nextSub  int
	subs     map[int]func(MonthView)
	closeOne sync.Once
}

// memoEntry is a view tagged with the change generation current when its
// queries started. Entries from an older generation are never served.
type memoEntry struct {
	gen  uint64
	view MonthView
}

// New builds an aggregator positioned on the current month of the clock,
// computes the first view and starts following changes published on bus.
func New(ctx context.Context, src Source, bus Subscriber, opts ...Option) (*Aggregator, error) {
	o := options{now: time.Now, cacheSize: 12}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.DefaultConfig())
	}

	now := o.now()
	a := &Aggregator{
		src:    src,
		logger: o.logger.WithComponent(log.ComponentAggregator),
		cursor: core.Cursor{Month: int(now.Month()), Year: now.Year()},
		subs:   make(map[int]func(MonthView)),
	}
	if o.cacheSize > 0 {
		a.memo = cache.NewLRUCache[memoEntry](o.cacheSize, o.cacheTTL)
		if o.cacheTTL > 0 {
			a.sweeper = cache.NewManager()
			a.sweeper.Register(a.memo)
			a.sweeper.StartCleanup(o.cacheTTL)
		}
	}

	if bus != nil {
		a.detach = bus.Subscribe(a.onChange)
	}
	if _, err := a.move(ctx, a.cursor, true); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Cursor returns the selected month.
func (a *Aggregator) Cursor() core.Cursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// View returns the current month view.
func (a *Aggregator) View() MonthView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view.clone()
}

// Balance returns income minus expenses for the selected month.
func (a *Aggregator) Balance() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.view.Balance()
}

// NextMonth advances the cursor, rolling December into January.
func (a *Aggregator) NextMonth(ctx context.Context) (MonthView, error) {
	return a.step(ctx, core.Cursor.Next)
}

// PreviousMonth moves the cursor back, rolling January into December.
func (a *Aggregator) PreviousMonth(ctx context.Context) (MonthView, error) {
	return a.step(ctx, core.Cursor.Previous)
}

// SetMonth jumps to an arbitrary month. Months outside 1-12 are rejected
// with core.ErrInvalidMonth and the cursor stays where it was.
func (a *Aggregator) SetMonth(ctx context.Context, month, year int) (MonthView, error) {
	c, err := core.NewCursor(month, year)
	if err != nil {
		return MonthView{}, err
	}
	return a.publish(a.move(ctx, c, false))
}

// Refresh recomputes the selected month from the store.
func (a *Aggregator) Refresh(ctx context.Context) (MonthView, error) {
	a.invalidate()
	return a.publish(a.move(ctx, a.Cursor(), true))
}

// CategoryExpenses lists the selected month's expenses filed under category.
func (a *Aggregator) CategoryExpenses(ctx context.Context, category string) ([]core.Expense, error) {
	c := a.Cursor()
	list, err := a.src.ExpensesByCategoryName(ctx, category, c.Month, c.Year)
	if err != nil {
		return nil, fmt.Errorf("expenses for %s in %s: %w", category, c, err)
	}
	return list, nil
}

// Subscribe registers fn to receive every recomputed view. fn runs on the
// goroutine that caused the recompute, after the aggregator lock is released.
func (a *Aggregator) Subscribe(fn func(MonthView)) (unsubscribe func()) {
	a.subsMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			a.subsMu.Lock()
			delete(a.subs, id)
			a.subsMu.Unlock()
		})
	}
}

// Close stops following ledger changes. It is safe to call more than once.
func (a *Aggregator) Close() {
	a.closeOne.Do(func() {
		if a.detach != nil {
			a.detach()
		}
		if a.sweeper != nil {
			a.sweeper.Stop()
		}
	})
}

func (a *Aggregator) step(ctx context.Context, next func(core.Cursor) core.Cursor) (MonthView, error) {
	return a.publish(a.move(ctx, next(a.Cursor()), false))
}

// onChange runs on the publisher's goroutine after the store committed.
func (a *Aggregator) onChange(c events.Change) {
	a.invalidate()

	ctx := context.Background()
	view, err := a.move(ctx, a.Cursor(), true)
	if err != nil {
		a.logger.WarnContext(ctx, "Recompute after ledger change failed",
			log.FieldKind, string(c.Kind),
			log.FieldOperation, string(c.Op),
			log.FieldError, err)
		return
	}
	a.publish(view, nil)
}

// move computes the view for c and makes it current. fresh skips the memo.
// On error the cursor and view are left untouched.
func (a *Aggregator) move(ctx context.Context, c core.Cursor, fresh bool) (MonthView, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	gen := a.gen.Load()
	view, ok := MonthView{}, false
	if !fresh {
		view, ok = a.cached(c, gen)
	}
	if !ok {
		var err error
		view, err = a.compute(ctx, c)
		if err != nil {
			return MonthView{}, err
		}
		if a.memo != nil {
			a.memo.Set(c.Key(), memoEntry{gen: gen, view: view})
		}
	}

	a.cursor = c
	a.view = view
	return view.clone(), nil
}

func (a *Aggregator) cached(c core.Cursor, gen uint64) (MonthView, bool) {
	if a.memo == nil {
		return MonthView{}, false
	}
	entry, ok := a.memo.Get(c.Key())
	if !ok || entry.gen != gen {
		return MonthView{}, false
	}
	return entry.view, true
}

// invalidate retires every memoized view. A view whose queries started
// before the bump is stored under the old generation and never served.
func (a *Aggregator) invalidate() {
	a.gen.Add(1)
	if a.memo != nil {
		a.memo.Purge()
	}
}

// compute runs the five month queries concurrently.
func (a *Aggregator) compute(ctx context.Context, c core.Cursor) (MonthView, error) {
	start := time.Now()
	view := MonthView{Cursor: c}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		view.Expenses, err = a.src.ExpensesByMonth(gctx, c.Month, c.Year)
		return err
	})
	g.Go(func() (err error) {
		view.Incomes, err = a.src.IncomesByMonth(gctx, c.Month, c.Year)
		return err
	})
	g.Go(func() (err error) {
		view.TotalExpense, err = a.src.TotalExpenseByMonth(gctx, c.Month, c.Year)
		return err
	})
	g.Go(func() (err error) {
		view.TotalIncome, err = a.src.TotalIncomeByMonth(gctx, c.Month, c.Year)
		return err
	})
	g.Go(func() (err error) {
		view.CategoryTotals, err = a.src.ExpensesByCategoryMonth(gctx, c.Month, c.Year)
		return err
	})
	if err := g.Wait(); err != nil {
		return MonthView{}, fmt.Errorf("compute view for %s: %w", c, err)
	}

	a.logger.DebugContext(ctx, "Month view computed",
		log.FieldMonth, c.Month,
		log.FieldYear, c.Year,
		log.FieldExpenses, len(view.Expenses),
		log.FieldIncomes, len(view.Incomes),
		log.FieldDuration, time.Since(start).Milliseconds())
	return view, nil
}

func (a *Aggregator) publish(view MonthView, err error) (MonthView, error) {
	if err != nil {
		return MonthView{}, err
	}

	a.subsMu.Lock()
	ids := make([]int, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(MonthView), len(ids))
	for i, id := range ids {
		fns[i] = a.subs[id]
	}
	a.subsMu.Unlock()

	for _, fn := range fns {
		fn(view.clone())
	}
	return view, nil
}
