package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func activeBoom(maxEditions int64) *Boom {
	return &Boom{
		ID:          1,
		TokenID:     "BOOM-0001",
		Social:      socialvalue.State{BasePrice: money.New(1000), PalierThreshold: socialvalue.DefaultPalierThreshold},
		MaxEditions: maxEditions,
		IsActive:    true,
		CreatedAt:   now,
	}
}

func TestCheckAvailabilitySingleEdition(t *testing.T) {
	b := activeBoom(1)

	require.NoError(t, b.CheckAvailability(1))

	owner := int64(42)
	b.OwnerID = &owner
	assert.ErrorIs(t, b.CheckAvailability(1), ErrStockExhausted)
}

func TestCheckAvailabilityMultiEdition(t *testing.T) {
	b := activeBoom(10)
	b.CurrentEdition = 8

	require.NoError(t, b.CheckAvailability(2))
	assert.ErrorIs(t, b.CheckAvailability(3), ErrStockExhausted)

	b.ReserveEditions(2)
	assert.EqualValues(t, 10, b.CurrentEdition)
	assert.EqualValues(t, 0, b.AvailableEditions)
	assert.ErrorIs(t, b.CheckAvailability(1), ErrStockExhausted)
}

func TestCheckAvailabilityInactive(t *testing.T) {
	b := activeBoom(1)
	b.IsActive = false
	assert.ErrorIs(t, b.CheckAvailability(1), ErrBoomUnavailable)
}

func TestCheckAvailabilityBadQuantity(t *testing.T) {
	b := activeBoom(10)
	assert.Error(t, b.CheckAvailability(0))
	assert.Error(t, b.CheckAvailability(-1))
}

func TestMarketValue(t *testing.T) {
	b := activeBoom(1)
	b.Social.AppliedMicroValue = money.New(200)
	assert.Equal(t, "1200.00", b.MarketValue().StringFCFA())
}

func TestHoldingEscrowLifecycle(t *testing.T) {
	h := &Holding{ID: 1, UserID: 7, BoomID: 1, IsTransferable: true, AcquiredAt: now}

	require.NoError(t, h.CheckOwnedBy(7))
	assert.ErrorIs(t, h.CheckOwnedBy(8), ErrHoldingNotOwned)
	require.NoError(t, h.CheckTransferable(now))
	assert.False(t, h.InEscrow())

	h.Escrow(now)
	assert.True(t, h.InEscrow())
	assert.False(t, h.IsTransferable)
	require.NotNil(t, h.TransferredAt)
	assert.Equal(t, now, *h.TransferredAt)
	assert.ErrorIs(t, h.CheckTransferable(now), ErrHoldingNotTransferable)

	// Decline path: asset restored, fees stay consumed.
	h.Release()
	assert.False(t, h.InEscrow())
	assert.True(t, h.IsTransferable)
	assert.Nil(t, h.ReceiverID)
	require.NoError(t, h.CheckTransferable(now))
}

func TestHoldingSettle(t *testing.T) {
	h := &Holding{ID: 1, UserID: 7, BoomID: 1, IsTransferable: true}

	h.Settle(9, now)
	assert.True(t, h.IsSold)
	assert.False(t, h.InEscrow())
	require.NotNil(t, h.ReceiverID)
	assert.EqualValues(t, 9, *h.ReceiverID)
	assert.ErrorIs(t, h.CheckTransferable(now), ErrHoldingSold)
}

func TestGiftCooldown(t *testing.T) {
	delivered := now.Add(-2 * time.Hour)
	h := &Holding{ID: 1, UserID: 7, IsTransferable: true, DeliveredAt: &delivered}

	assert.ErrorIs(t, h.CheckTransferable(now), ErrGiftCooldown)

	// Past the 24h window it is giftable again.
	old := now.Add(-25 * time.Hour)
	h.DeliveredAt = &old
	require.NoError(t, h.CheckTransferable(now))
}

func TestUserCanTransact(t *testing.T) {
	u := &User{ID: 1, Status: StatusActive}
	require.NoError(t, u.CanTransact(now))

	u.Status = StatusReview
	require.NoError(t, u.CanTransact(now))

	u.Status = StatusBanned
	assert.ErrorIs(t, u.CanTransact(now), ErrUserBanned)

	u.Status = StatusSuspended
	assert.ErrorIs(t, u.CanTransact(now), ErrUserSuspended)

	// A lapsed suspension no longer blocks.
	until := now.Add(-time.Hour)
	u.SuspendedUntil = &until
	require.NoError(t, u.CanTransact(now))

	future := now.Add(time.Hour)
	u.SuspendedUntil = &future
	assert.ErrorIs(t, u.CanTransact(now), ErrUserSuspended)
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusActive, StatusReview, StatusLimited, StatusSuspended, StatusBanned} {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("ghost").Valid())
}
