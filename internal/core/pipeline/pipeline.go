// Package pipeline runs the atomic money-and-asset flows: purchase,
// secondary sale, free transfer, gift lifecycle and BOOM withdrawal.
// Each flow is one database transaction obeying the global lock order
// (BOOMs, then holdings, then user balances ascending, then treasury);
// broadcasts and provider calls happen strictly after commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// ErrTransientContended is returned after the retry budget for a
// contended transaction is exhausted.
var ErrTransientContended = errors.New("TRANSIENT_CONTENDED: transaction contended, retry later")

// EventType labels a post-commit broadcast.
type EventType string

const (
	EventBalanceUpdate     EventType = "balance_update"
	EventSocialValueUpdate EventType = "social_value_update"
	EventSocialEvent       EventType = "social_event"
	EventUserNotification  EventType = "user_notification"
	EventTreasuryUpdate    EventType = "treasury_update"
)

// Event is one post-commit broadcast. UserID scopes user streams,
// BoomID scopes BOOM streams; either may be zero.
type Event struct {
	Type    EventType
	UserID  int64
	BoomID  int64
	Payload map[string]interface{}
	At      time.Time
}

// Sink receives events after the transaction that produced them has
// committed. Delivery is best-effort; a failing sink never affects the
// committed transaction.
type Sink interface {
	Publish(event Event)
}

// discardSink drops everything.
type discardSink struct{}

func (discardSink) Publish(Event) {}

// emitter queues events inside a transaction for post-commit delivery.
type emitter struct {
	events []Event
}

func (e *emitter) emit(ev Event) {
	e.events = append(e.events, ev)
}

// Runner executes pipelines against the store.
type Runner struct {
	db     relationaldb.RepositoryManager
	sink   Sink
	logger *log.Logger
	now    func() time.Time

	maxRetries int
	retryDelay time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithSink sets the post-commit event sink.
func WithSink(sink Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the runner's logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithRetry overrides the contention retry budget.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(r *Runner) {
		r.maxRetries = maxRetries
		r.retryDelay = delay
	}
}

// NewRunner creates a Runner with the default retry budget of 3
// attempts at 0.1s times the attempt number.
func NewRunner(db relationaldb.RepositoryManager, opts ...Option) *Runner {
	r := &Runner{
		db:         db,
		sink:       discardSink{},
		logger:     log.Default(),
		now:        time.Now,
		maxRetries: 3,
		retryDelay: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run executes fn inside a transaction, retrying contended attempts.
// Queued events are published only after a successful commit.
func (r *Runner) run(ctx context.Context, operation string, fn func(tx relationaldb.TransactionContext, ev *emitter) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		ev := &emitter{}
		err := r.db.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
			return fn(tx, ev)
		})
		if err == nil {
			for _, event := range ev.events {
				r.sink.Publish(event)
			}
			return nil
		}
		if !relationaldb.IsRetryable(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.retryDelay * time.Duration(attempt)):
		}
	}
	r.logger.Printf("pipeline %s: retries exhausted: %v", operation, lastErr)
	return fmt.Errorf("%w: %s", ErrTransientContended, operation)
}
