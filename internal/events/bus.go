// Package events carries in-process change notifications from the ledger
// stores to whoever derives state from them.
package events

import (
	"sort"
	"sync"
)

// Kind identifies which record set a change touched.
type Kind string

const (
	KindExpense  Kind = "expense"
	KindIncome   Kind = "income"
	KindCategory Kind = "category"
	KindLedger   Kind = "ledger" // batch append of expenses and incomes
)

// Op identifies the kind of write.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAppend Op = "append"
)

// Change describes one committed write.
type Change struct {
	Kind Kind
	Op   Op
	ID   int64
	Name string // category name for KindCategory
}

// Publisher is implemented by anything that can broadcast committed changes.
type Publisher interface {
	Publish(c Change)
}

// Bus is a synchronous fan-out of Change notifications. Handlers run on the
// publishing goroutine in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Change)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Change))}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus) Subscribe(fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers c to every current subscriber. A nil Bus drops the change.
func (b *Bus) Publish(c Change) {
	if b == nil {
		return
	}
	for _, fn := range b.snapshot() {
		fn(c)
	}
}

// Len returns the number of active subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// snapshot copies the handlers so they run without the lock held and may
// subscribe or unsubscribe themselves.
func (b *Bus) snapshot() []func(Change) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(Change), len(ids))
	for i, id := range ids {
		out[i] = b.subs[id]
	}
	return out
}
