package builders

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/pipeline"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb/sqlite"
)

// Epoch is the fixed instant every Env starts at.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Clock is a manually advanced time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

// Now returns the current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Sink collects post-commit events for assertions.
type Sink struct {
	mu     sync.Mutex
	events []pipeline.Event
}

// Publish implements pipeline.Sink.
func (s *Sink) Publish(ev pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// ByType returns the collected events of one type.
func (s *Sink) ByType(t pipeline.EventType) []pipeline.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []pipeline.Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Env is a self-contained platform instance over a temporary store.
type Env struct {
	t      *testing.T
	DB     *sqlite.Database
	Runner *pipeline.Runner
	Clock  *Clock
	Sink   *Sink
}

// NewEnv opens a fresh store and runner. Cleanup is registered on t.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	config := relationaldb.SQLiteConfig(filepath.Join(t.TempDir(), "test.db"))
	db, err := sqlite.New(config)
	require.NoError(t, err)
	require.NoError(t, db.Open(context.Background()))
	t.Cleanup(func() { db.Close(context.Background()) })

	clock := &Clock{t: Epoch}
	sink := &Sink{}
	runner := pipeline.NewRunner(db,
		pipeline.WithSink(sink),
		pipeline.WithClock(clock.Now),
		pipeline.WithRetry(3, time.Millisecond),
	)
	return &Env{t: t, DB: db, Runner: runner, Clock: clock, Sink: sink}
}

// Ctx is the background context every harness call uses.
func (e *Env) Ctx() context.Context {
	return context.Background()
}

// Purchase buys quantity editions and fails the test on error.
func (e *Env) Purchase(buyer *inventory.User, boom *inventory.Boom, quantity int64) *pipeline.PurchaseResult {
	e.t.Helper()
	result, err := e.Runner.Purchase(e.Ctx(), pipeline.PurchaseInput{
		BuyerID:  buyer.ID,
		BoomID:   boom.ID,
		Quantity: quantity,
	})
	require.NoError(e.t, err)
	return result
}

// SendGift escrows a holding as a gift and returns its ID.
func (e *Env) SendGift(sender, receiver *inventory.User, holdingID int64) int64 {
	e.t.Helper()
	result, err := e.Runner.SendGift(e.Ctx(), pipeline.GiftSendInput{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		HoldingID:  holdingID,
	})
	require.NoError(e.t, err)
	return result.GiftID
}

// RealBalance reads a user's available cash at the FCFA scale.
func (e *Env) RealBalance(userID int64) string {
	e.t.Helper()
	b, err := e.DB.Balances().GetRealBalance(e.Ctx(), userID)
	require.NoError(e.t, err)
	return b.Available.StringFCFA()
}

// VirtualBalance reads a user's redistribution balance.
func (e *Env) VirtualBalance(userID int64) string {
	e.t.Helper()
	b, err := e.DB.Balances().GetVirtualBalance(e.Ctx(), userID)
	require.NoError(e.t, err)
	return b.Balance.StringFCFA()
}

// TreasuryBalance reads the platform purse.
func (e *Env) TreasuryBalance() string {
	e.t.Helper()
	tr, err := e.DB.Treasury().GetTreasury(e.Ctx())
	require.NoError(e.t, err)
	return tr.Balance.StringFCFA()
}
