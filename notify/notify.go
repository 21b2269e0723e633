/*
Package notify delivers user notifications produced by ledger mutations.

PURPOSE:
  The ledger hands notices to a Dispatcher and moves on. The dispatcher
  queues them on a buffered channel and a single worker passes each one to
  a Sender (push gateway, email, log). Delivery failures are logged and
  never reach the ledger.

BACKPRESSURE:
  Notify never blocks. When the queue is full the notification is dropped
  and logged at warn level.

SHUTDOWN:
  Close stops intake and waits for the worker to drain the queue.
*/
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/finance-ledger/ledger"
)

// Notification is a delivery-ready message.
type Notification struct {
	ID        string
	UserID    ledger.UserID
	Title     string
	Body      string
	Screen    string // client screen to open
	Channel   string // android channel id
	CreatedAt time.Time
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n Notification) error

func (f SenderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSender writes notifications to a logger. Used when no push gateway is
// configured.
type LogSender struct {
	Log zerolog.Logger
}

func (s LogSender) Send(_ context.Context, n Notification) error {
	s.Log.Info().
		Str("notification_id", n.ID).
		Str("user_id", string(n.UserID)).
		Str("title", n.Title).
		Str("screen", n.Screen).
		Str("channel", n.Channel).
		Msg(n.Body)
	return nil
}

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher implements ledger.Notifier on top of a Sender.
type Dispatcher struct {
	sender  Sender
	log     zerolog.Logger
	timeout time.Duration

	queue  chan Notification
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	dropped atomic.Int64
}

var _ ledger.Notifier = (*Dispatcher)(nil)

// NewDispatcher starts a dispatcher with a queue of bufferSize.
func NewDispatcher(sender Sender, bufferSize int, log zerolog.Logger) *Dispatcher {
	if bufferSize < 1 {
		bufferSize = 1
	}
	d := &Dispatcher{
		sender:  sender,
		log:     log,
		timeout: 10 * time.Second,
		queue:   make(chan Notification, bufferSize),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// Notify queues a ledger notice. It never blocks.
func (d *Dispatcher) Notify(n ledger.Notice) {
	d.Dispatch(Notification{
		UserID:  n.UserID,
		Title:   n.Title,
		Body:    n.Body,
		Screen:  n.Screen,
		Channel: n.Channel,
	})
}

// Dispatch queues n. It reports false when the dispatcher is closed or the
// queue is full.
func (d *Dispatcher) Dispatch(n Notification) bool {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("user_id", string(n.UserID)).Msg("Notification dropped: dispatcher closed")
		return false
	}

	select {
	case d.queue <- n:
		return true
	default:
		d.dropped.Add(1)
		d.log.Warn().
			Str("user_id", string(n.UserID)).
			Str("title", n.Title).
			Msg("Notification dropped: queue full")
		return false
	}
}

// Dropped returns how many notifications were discarded because the queue
// was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting notifications and waits until queued ones are sent.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for n := range d.queue {
		d.send(n)
	}
}

func (d *Dispatcher) send(n Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		d.log.Error().
			Err(err).
			Str("notification_id", n.ID).
			Str("user_id", string(n.UserID)).
			Msg("Notification delivery failed")
	}
}
