// Package worker runs background jobs fed by the ledger change bus.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"fintrack/internal/amqp"
	"fintrack/internal/events"
	"fintrack/internal/log"
)

// Publisher sends a ledger change to the outside world.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
}

// Subscriber is the change source, normally *events.Bus.
type Subscriber interface {
	Subscribe(fn func(events.Change)) (unsubscribe func())
}

// Forwarder relays committed store changes to a Publisher on its own
// goroutine so writers never wait on the broker. When the queue is full new
// changes are dropped and counted.
type Forwarder struct {
	pub    Publisher
	logger *log.Logger
	queue  chan events.Change

	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	started bool
	detach  func()
	done    chan struct{}
	stop    sync.Once
	dropped atomic.Int64
	failed  atomic.Int64
	sent    atomic.Int64
}

// NewForwarder creates a forwarder with room for buffer pending changes.
func NewForwarder(pub Publisher, buffer int, logger *log.Logger) *Forwarder {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Forwarder{
		pub:    pub,
		logger: logger.WithComponent(log.ComponentAMQP),
		queue:  make(chan events.Change, buffer),
		done:   make(chan struct{}),
	}
}

// Start subscribes to src and begins publishing. Call Stop to drain.
func (f *Forwarder) Start(ctx context.Context, src Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.closed {
		return
	}
	f.started = true
	f.detach = src.Subscribe(f.enqueue)
	go f.run(ctx)
}

func (f *Forwarder) enqueue(c events.Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- c:
	default:
		f.dropped.Add(1)
		f.logger.Warn("Change queue full, dropping ledger change",
			log.FieldKind, string(c.Kind),
			log.FieldOperation, string(c.Op),
			log.FieldID, c.ID)
	}
}

func (f *Forwarder) run(ctx context.Context) {
	defer close(f.done)
	for c := range f.queue {
		msg := amqp.NewLedgerChangeMessage(string(c.Kind), string(c.Op), c.ID, c.Name)
		if err := f.pub.PublishLedgerChange(ctx, msg); err != nil {
			f.failed.Add(1)
			f.logger.WarnContext(ctx, "Failed to publish ledger change",
				log.FieldKind, msg.Kind,
				log.FieldOperation, msg.Op,
				log.FieldID, msg.ID,
				log.FieldError, err)
			continue
		}
		f.sent.Add(1)
	}
}

// Stop unsubscribes, publishes what is already queued, waits for the
// goroutine to exit and logs the final counters. It is safe to call more
// than once.
func (f *Forwarder) Stop() {
	f.stop.Do(func() {
		f.mu.Lock()
		if f.detach != nil {
			f.detach()
		}
		f.closed = true
		close(f.queue)
		started := f.started
		f.mu.Unlock()

		if started {
			<-f.done
			sent, failed, dropped := f.Stats()
			f.logger.Info("Change forwarder stopped",
				"sent", sent,
				"failed", failed,
				"dropped", dropped)
		}
	})
}

// Stats reports how many changes were sent, failed and dropped.
func (f *Forwarder) Stats() (sent, failed, dropped int64) {
	return f.sent.Load(), f.failed.Load(), f.dropped.Load()
}
