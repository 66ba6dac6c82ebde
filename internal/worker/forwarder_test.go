package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/events"
	"fintrack/internal/log"
)

type recordingPublisher struct {
	mu    sync.Mutex
	msgs  []*amqp.LedgerChangeMessage
	fail  error
	block chan struct{}
}

func (p *recordingPublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) published() []*amqp.LedgerChangeMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*amqp.LedgerChangeMessage(nil), p.msgs...)
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Output: io.Discard})
}

func TestForwarder_RelaysChangesInOrder(t *testing.T) {
	bus := events.NewBus()
	pub := &recordingPublisher{}
	f := NewForwarder(pub, 16, quietLogger())
	f.Start(context.Background(), bus)

	bus.Publish(events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: 1})
	bus.Publish(events.Change{Kind: events.KindCategory, Op: events.OpDelete, Name: "Gifts"})
	bus.Publish(events.Change{Kind: events.KindLedger, Op: events.OpAppend})
	f.Stop()

	msgs := pub.published()
	require.Len(t, msgs, 3)
	assert.Equal(t, "expense", msgs[0].Kind)
	assert.Equal(t, int64(1), msgs[0].ID)
	assert.Equal(t, "Gifts", msgs[1].Name)
	assert.Equal(t, "append", msgs[2].Op)

	sent, failed, dropped := f.Stats()
	assert.Equal(t, int64(3), sent)
	assert.Zero(t, failed)
	assert.Zero(t, dropped)
	assert.Zero(t, bus.Len(), "Stop must unsubscribe")
}

func TestForwarder_PublishFailuresAreCounted(t *testing.T) {
	bus := events.NewBus()
	pub := &recordingPublisher{fail: errors.New("broker down")}
	f := NewForwarder(pub, 4, quietLogger())
	f.Start(context.Background(), bus)

	bus.Publish(events.Change{Kind: events.KindIncome, Op: events.OpUpdate, ID: 2})
	f.Stop()

	_, failed, _ := f.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestForwarder_DropsWhenQueueFull(t *testing.T) {
	bus := events.NewBus()
	pub := &recordingPublisher{block: make(chan struct{})}
	f := NewForwarder(pub, 1, quietLogger())
	f.Start(context.Background(), bus)

	// The worker may already hold the first change, so publish enough to
	// overflow a one-slot queue regardless.
	for i := int64(1); i <= 5; i++ {
		bus.Publish(events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: i})
	}
	close(pub.block)
	f.Stop()

	sent, _, dropped := f.Stats()
	assert.GreaterOrEqual(t, dropped, int64(3))
	assert.Equal(t, int64(5), sent+dropped)
}

func TestForwarder_StopLogsCounters(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Format: "text", Output: &buf})
	bus := events.NewBus()
	f := NewForwarder(&recordingPublisher{}, 4, logger)
	f.Start(context.Background(), bus)

	bus.Publish(events.Change{Kind: events.KindExpense, Op: events.OpCreate, ID: 7})
	f.Stop()
	f.Stop()

	out := buf.String()
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("Change forwarder stopped")))
	assert.Contains(t, out, "sent=1")
	assert.Contains(t, out, "failed=0")
	assert.Contains(t, out, "dropped=0")
}

func TestForwarder_StopWithoutStart(t *testing.T) {
	f := NewForwarder(&recordingPublisher{}, 1, quietLogger())
	f.Stop()
	f.Stop()

	// Changes after Stop are ignored rather than panicking.
	f.enqueue(events.Change{Kind: events.KindExpense, Op: events.OpCreate})
}
