// Package interactions records like/share/view/comment actions against
// BOOMs and feeds their micro-impact into the social-value engine.
// Trades carry their own social bump inside the pipelines; this is the
// path for everything that moves no money.
package interactions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// ErrUnknownAction is returned for actions the recorder does not
// accept. Trade actions (buy, sell, gift) only enter through their
// pipelines.
var ErrUnknownAction = errors.New("VALIDATION_ERROR: unknown interaction action")

// DedupWindow is the sliding window within which a repeat of the same
// (user, BOOM, action) records but applies no impact.
const DedupWindow = time.Hour

// dedupCacheSize bounds the in-memory fast path. The interaction log
// remains the authority across restarts.
const dedupCacheSize = 8192

// recordable is the action set the public recorder accepts.
var recordable = map[socialvalue.Action]struct{}{
	socialvalue.ActionLike:    {},
	socialvalue.ActionShare:   {},
	socialvalue.ActionComment: {},
	socialvalue.ActionView:    {},
}

// Input is one interaction to record.
type Input struct {
	UserID  int64
	BoomID  int64
	Action  socialvalue.Action
	Channel string
}

// Result reports what recording did. A deduplicated interaction is
// logged but carries zero impact and moves nothing.
type Result struct {
	InteractionID int64
	Deduplicated  bool
	Outcome       socialvalue.Outcome
	MarketValue   string
}

// Recorder applies interactions transactionally and broadcasts the
// resulting social updates post-commit.
type Recorder struct {
	db     relationaldb.RepositoryManager
	sink   pipeline.Sink
	logger *log.Logger
	now    func() time.Time

	seen *lru.Cache[string, time.Time]
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithSink sets the post-commit event sink.
func WithSink(sink pipeline.Sink) Option {
	return func(r *Recorder) { r.sink = sink }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogger sets the recorder's logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

// NewRecorder creates a Recorder over the store.
func NewRecorder(db relationaldb.RepositoryManager, opts ...Option) (*Recorder, error) {
	seen, err := lru.New[string, time.Time](dedupCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		db:     db,
		sink:   noopSink{},
		logger: log.Default(),
		now:    time.Now,
		seen:   seen,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type noopSink struct{}

func (noopSink) Publish(pipeline.Event) {}

// Record applies one interaction. The first occurrence within the
// window mutates the BOOM's social state; repeats are logged with zero
// impact.
func (r *Recorder) Record(ctx context.Context, in Input) (*Result, error) {
	if _, ok := recordable[in.Action]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, in.Action)
	}

	now := r.now()
	key := dedupKey(in)
	if last, ok := r.seen.Get(key); ok && now.Sub(last) < DedupWindow {
		return r.recordDuplicate(ctx, in, now)
	}

	var result *Result
	var events []pipeline.Event
	err := r.db.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		user, err := tx.Users().GetUser(ctx, in.UserID)
		if err != nil {
			if errors.Is(err, relationaldb.ErrUserNotFound) {
				return inventory.ErrUserNotFound
			}
			return err
		}
		if err := user.CanTransact(now); err != nil {
			return err
		}

		// The log is the dedup authority; the LRU only spares this read.
		recent, err := tx.Interactions().CountRecentInteractions(
			ctx, in.UserID, in.BoomID, string(in.Action), now.Add(-DedupWindow))
		if err != nil {
			return err
		}
		if recent > 0 {
			result, err = r.logInteraction(ctx, tx, in, nil, now)
			return err
		}

		boom, err := tx.Booms().GetBoomForUpdate(ctx, in.BoomID)
		if err != nil {
			return err
		}
		if !boom.IsActive {
			return inventory.ErrBoomUnavailable
		}

		outcome, err := socialvalue.Apply(&boom.Social, in.Action,
			socialvalue.Metadata{Channel: in.Channel}, now)
		if err != nil {
			return err
		}
		boom.UpdatedAt = now
		if err := tx.Booms().UpdateBoom(ctx, boom); err != nil {
			return err
		}

		result, err = r.logInteraction(ctx, tx, in, &outcome, now)
		if err != nil {
			return err
		}
		result.MarketValue = boom.MarketValue().StringFCFA()

		events = append(events, pipeline.Event{
			Type:   pipeline.EventSocialValueUpdate,
			BoomID: boom.ID,
			Payload: map[string]interface{}{
				"market_value": boom.MarketValue().StringFCFA(),
			},
			At: now,
		})
		if outcome.Event != "" {
			events = append(events, pipeline.Event{
				Type:   pipeline.EventSocialEvent,
				BoomID: boom.ID,
				Payload: map[string]interface{}{
					"event":   string(outcome.Event),
					"boom_id": boom.ID,
				},
				At: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.seen.Add(key, now)
	for _, ev := range events {
		r.sink.Publish(ev)
	}
	return result, nil
}

// recordDuplicate logs a repeat caught by the in-memory window without
// opening the BOOM row.
func (r *Recorder) recordDuplicate(ctx context.Context, in Input, now time.Time) (*Result, error) {
	var result *Result
	err := r.db.WithTransaction(ctx, func(tx relationaldb.TransactionContext) error {
		var err error
		result, err = r.logInteraction(ctx, tx, in, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// logInteraction appends the interaction row. A nil outcome marks a
// deduplicated repeat with zero impact.
func (r *Recorder) logInteraction(ctx context.Context, tx relationaldb.TransactionContext,
	in Input, outcome *socialvalue.Outcome, now time.Time) (*Result, error) {

	row := &relationaldb.Interaction{
		UserID:    in.UserID,
		BoomID:    in.BoomID,
		Action:    string(in.Action),
		Channel:   in.Channel,
		CreatedAt: now,
	}
	result := &Result{Deduplicated: outcome == nil}
	if outcome != nil {
		row.Impact = outcome.Impact
		result.Outcome = *outcome
	}

	id, err := tx.Interactions().CreateInteraction(ctx, row)
	if err != nil {
		return nil, err
	}
	result.InteractionID = id
	return result, nil
}

func dedupKey(in Input) string {
	return fmt.Sprintf("%d|%d|%s", in.UserID, in.BoomID, in.Action)
}
