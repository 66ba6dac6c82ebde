package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversInSubscriptionOrder(t *testing.T) {
	bus := NewBus()
	var got []string

	bus.Subscribe(func(c Change) { got = append(got, "first:"+string(c.Op)) })
	bus.Subscribe(func(c Change) { got = append(got, "second:"+string(c.Op)) })

	bus.Publish(Change{Kind: KindExpense, Op: OpCreate, ID: 1})

	assert.Equal(t, []string{"first:create", "second:create"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	calls := 0
	unsubscribe := bus.Subscribe(func(Change) { calls++ })

	bus.Publish(Change{Kind: KindIncome, Op: OpUpdate})
	unsubscribe()
	unsubscribe()
	bus.Publish(Change{Kind: KindIncome, Op: OpDelete})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Len())
}

func TestBus_HandlerMaySubscribeDuringPublish(t *testing.T) {
	bus := NewBus()
	late := 0
	bus.Subscribe(func(Change) {
		bus.Subscribe(func(Change) { late++ })
	})

	bus.Publish(Change{Kind: KindCategory, Op: OpCreate, Name: "Books"})
	assert.Equal(t, 0, late, "handlers added mid-publish see only later changes")

	bus.Publish(Change{Kind: KindCategory, Op: OpDelete, Name: "Books"})
	assert.Equal(t, 1, late)
}

func TestBus_NilPublishIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(Change{}) })
}
