package gift

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newFlowGift(status Status) *Gift {
	return &Gift{
		ID: 1, SenderID: 10, ReceiverID: 20, HoldingID: 5,
		Status: status, Flow: FlowNew,
		CreatedAt: now, ExpiresAt: now.Add(DefaultExpiry),
	}
}

func TestReferenceFormat(t *testing.T) {
	re := regexp.MustCompile(`^GIFT-\d{13}-[0-9A-F]{12}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		ref := NewReference(now)
		assert.Regexp(t, re, ref)
		_, dup := seen[ref]
		assert.False(t, dup, "duplicate reference %s", ref)
		seen[ref] = struct{}{}
	}
}

func TestNewFlowTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusCreated, StatusPaid, true},
		{StatusCreated, StatusFailed, true},
		{StatusPaid, StatusDelivered, true},
		{StatusPaid, StatusFailed, true},
		{StatusPaid, StatusExpired, true},
		{StatusCreated, StatusDelivered, false},
		{StatusCreated, StatusExpired, false},
		{StatusDelivered, StatusFailed, false},
		{StatusFailed, StatusPaid, false},
		{StatusExpired, StatusDelivered, false},
		{StatusPaid, StatusCreated, false},
	}

	for _, tt := range tests {
		g := newFlowGift(tt.from)
		err := g.Transition(tt.to, now)
		if tt.allowed {
			require.NoError(t, err, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.to, g.Status)
		} else {
			require.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tt.from, tt.to)
			assert.Equal(t, tt.from, g.Status, "status must not change on a rejected transition")
		}
	}
}

func TestLegacyFlowTransitions(t *testing.T) {
	for _, to := range []Status{StatusAccepted, StatusDeclined, StatusExpired} {
		g := &Gift{Status: StatusSent, Flow: FlowLegacy, CreatedAt: now}
		require.NoError(t, g.Transition(to, now))
	}

	// Legacy gifts never enter the new flow.
	g := &Gift{Status: StatusSent, Flow: FlowLegacy, CreatedAt: now}
	assert.ErrorIs(t, g.Transition(StatusPaid, now), ErrInvalidTransition)

	// And new-flow gifts never take legacy transitions.
	g2 := newFlowGift(StatusPaid)
	assert.ErrorIs(t, g2.Transition(StatusAccepted, now), ErrInvalidTransition)
}

func TestTransitionTimestamps(t *testing.T) {
	g := newFlowGift(StatusCreated)

	require.NoError(t, g.Transition(StatusPaid, now))
	require.NotNil(t, g.PaidAt)
	assert.Equal(t, now, *g.PaidAt)

	later := now.Add(time.Hour)
	require.NoError(t, g.Transition(StatusDelivered, later))
	require.NotNil(t, g.DeliveredAt)
	require.NotNil(t, g.AcceptedAt)
	assert.Equal(t, later, *g.DeliveredAt)
}

func TestFailedStampsFailedAt(t *testing.T) {
	g := newFlowGift(StatusPaid)
	require.NoError(t, g.Transition(StatusFailed, now))
	require.NotNil(t, g.FailedAt)
	assert.True(t, g.Status.Terminal())
}

func TestCheckAcceptable(t *testing.T) {
	g := newFlowGift(StatusPaid)
	require.NoError(t, g.CheckAcceptable(now))

	// At or past expiry the gift is no longer acceptable.
	assert.ErrorIs(t, g.CheckAcceptable(g.ExpiresAt), ErrExpired)
	assert.ErrorIs(t, g.CheckAcceptable(g.ExpiresAt.Add(time.Hour)), ErrExpired)

	created := newFlowGift(StatusCreated)
	assert.ErrorIs(t, created.CheckAcceptable(now), ErrInvalidTransition)

	legacy := &Gift{Status: StatusSent, Flow: FlowLegacy}
	require.NoError(t, legacy.CheckAcceptable(now))
}

func TestAbandoned(t *testing.T) {
	g := newFlowGift(StatusCreated)

	assert.False(t, g.Abandoned(now.Add(29*time.Minute)))
	assert.True(t, g.Abandoned(now.Add(31*time.Minute)))

	paid := newFlowGift(StatusPaid)
	assert.False(t, paid.Abandoned(now.Add(2*time.Hour)))
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusFailed, StatusExpired, StatusAccepted, StatusDeclined} {
		assert.True(t, s.Terminal(), "%s", s)
	}
	for _, s := range []Status{StatusCreated, StatusPaid, StatusSent} {
		assert.False(t, s.Terminal(), "%s", s)
	}
}
