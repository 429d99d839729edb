package inventory

import (
	"errors"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
)

// Holding errors.
var (
	ErrHoldingNotOwned        = errors.New("HOLDING_NOT_OWNED: holding does not belong to user")
	ErrHoldingNotTransferable = errors.New("HOLDING_NOT_TRANSFERABLE: holding cannot be transferred")
	ErrHoldingSold            = errors.New("HOLDING_NOT_TRANSFERABLE: holding already sold")
	ErrGiftCooldown           = errors.New("GIFT_DUPLICATE_RECENT: holding was gifted within the last 24h")
)

// giftCooldown is the minimum delay before a just-delivered holding can
// be gifted again.
const giftCooldown = 24 * time.Hour

// Holding is one user's claim on one copy of a BOOM.
type Holding struct {
	ID     int64
	UserID int64
	BoomID int64

	PurchasePrice money.Amount
	FeesPaid      money.Amount
	// SocialValueAtPurchase persists the market value at acquisition as
	// a structured column; withdrawal reads it instead of re-parsing the
	// transaction description.
	SocialValueAtPurchase money.Amount

	IsTransferable bool
	IsSold         bool
	ReceiverID     *int64
	TransferredAt  *time.Time
	DeliveredAt    *time.Time
	DeletedAt      *time.Time

	AcquiredAt time.Time
}

// InEscrow reports whether the holding is suspended by a pending gift:
// transferred_at set but not yet sold.
func (h *Holding) InEscrow() bool {
	return h.TransferredAt != nil && !h.IsSold
}

// CheckOwnedBy verifies user ownership of a live holding.
func (h *Holding) CheckOwnedBy(userID int64) error {
	if h.UserID != userID || h.DeletedAt != nil {
		return ErrHoldingNotOwned
	}
	return nil
}

// CheckTransferable verifies the holding can leave its owner right now.
func (h *Holding) CheckTransferable(now time.Time) error {
	if h.IsSold {
		return ErrHoldingSold
	}
	if !h.IsTransferable || h.TransferredAt != nil {
		return ErrHoldingNotTransferable
	}
	if h.DeliveredAt != nil && now.Sub(*h.DeliveredAt) < giftCooldown {
		return ErrGiftCooldown
	}
	return nil
}

// Escrow suspends the holding for a pending gift: transferred_at is
// stamped with the gift creation time and transferability is revoked,
// even though the recipient does not own it yet.
func (h *Holding) Escrow(now time.Time) {
	t := now
	h.TransferredAt = &t
	h.IsTransferable = false
}

// Release restores an escrowed holding after a declined or expired gift.
// Fees already paid stay consumed; only the asset returns.
func (h *Holding) Release() {
	h.TransferredAt = nil
	h.IsTransferable = true
	h.IsSold = false
	h.ReceiverID = nil
}

// Settle marks the holding consumed by a completed sale, gift delivery
// or transfer.
func (h *Holding) Settle(receiverID int64, now time.Time) {
	t := now
	h.IsSold = true
	h.IsTransferable = false
	h.ReceiverID = &receiverID
	if h.TransferredAt == nil {
		h.TransferredAt = &t
	}
}
