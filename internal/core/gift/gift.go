// Package gift models the two-phase gift record and its state machine.
//
// New gifts live on the CREATED → PAID → DELIVERED | FAILED | EXPIRED
// flow: the sender is debited at PAID, the holding sits in escrow, and
// the receiver is credited at DELIVERED. The legacy SENT flow is kept
// only so unfinished historical records can still settle.
package gift

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
)

// Gift errors.
var (
	ErrNotFound          = errors.New("GIFT_NOT_FOUND: no such gift")
	ErrExpired           = errors.New("GIFT_EXPIRED: gift past its expiry")
	ErrInvalidTransition = errors.New("GIFT_INVALID_TRANSITION: transition not allowed")
)

// Status is a gift lifecycle state.
type Status string

// New-flow states.
const (
	StatusCreated   Status = "CREATED"
	StatusPaid      Status = "PAID"
	StatusDelivered Status = "DELIVERED"
	StatusFailed    Status = "FAILED"
	StatusExpired   Status = "EXPIRED"
)

// Legacy-flow states. EXPIRED is shared with the new flow.
const (
	StatusSent     Status = "SENT"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
)

// Flow tags which state machine a gift lives on for its whole life.
type Flow string

const (
	FlowNew    Flow = "new"
	FlowLegacy Flow = "legacy"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusExpired, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// allowed transitions per flow.
var newFlowTransitions = map[Status][]Status{
	StatusCreated: {StatusPaid, StatusFailed},
	StatusPaid:    {StatusDelivered, StatusFailed, StatusExpired},
}

var legacyFlowTransitions = map[Status][]Status{
	StatusSent: {StatusAccepted, StatusDeclined, StatusExpired},
}

// DefaultExpiry is how long a PAID gift waits for the recipient.
const DefaultExpiry = 7 * 24 * time.Hour

// AbandonedAfter is how long a CREATED gift may linger before the
// sweeper fails it.
const AbandonedAfter = 30 * time.Minute

// Gift is a two-phase transfer record.
type Gift struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	HoldingID  int64
	BoomID     int64
	Message    string

	// GrossAmount is what the sender pays (gift fee plus sharing fee),
	// FeeAmount is the gift fee alone, the only part the treasury banks
	// at settlement, NetAmount is credited to the receiver on delivery.
	GrossAmount money.Amount
	FeeAmount   money.Amount
	NetAmount   money.Amount

	TransactionReference string
	Status               Status
	Flow                 Flow

	// WalletTransactionIDs collects the ledger entries this gift wrote.
	WalletTransactionIDs []int64

	CreatedAt   time.Time
	PaidAt      *time.Time
	AcceptedAt  *time.Time
	DeliveredAt *time.Time
	FailedAt    *time.Time
	ExpiresAt   time.Time
}

// NewReference generates a unique transaction reference of the form
// GIFT-<unix_ms>-<12 uppercase hex chars>.
func NewReference(now time.Time) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the timestamp to keep the format.
		return fmt.Sprintf("GIFT-%d-%012X", now.UnixMilli(), now.UnixNano()&0xFFFFFFFFFFFF)
	}
	return fmt.Sprintf("GIFT-%d-%s", now.UnixMilli(),
		strings.ToUpper(hex.EncodeToString(buf[:])))
}

// CanTransition reports whether moving to the target status is legal for
// this gift's flow.
func (g *Gift) CanTransition(to Status) bool {
	var table map[Status][]Status
	if g.Flow == FlowLegacy {
		table = legacyFlowTransitions
	} else {
		table = newFlowTransitions
	}
	for _, next := range table[g.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the gift to the target status, stamping the matching
// timestamp. Illegal transitions return ErrInvalidTransition; this is
// the at-most-once guard for every state change.
func (g *Gift) Transition(to Status, now time.Time) error {
	if !g.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s (flow %s)", ErrInvalidTransition, g.Status, to, g.Flow)
	}
	g.Status = to
	t := now
	switch to {
	case StatusPaid:
		g.PaidAt = &t
	case StatusDelivered:
		g.AcceptedAt = &t
		g.DeliveredAt = &t
	case StatusAccepted:
		g.AcceptedAt = &t
	case StatusFailed, StatusDeclined:
		g.FailedAt = &t
	case StatusExpired:
		g.FailedAt = &t
	}
	return nil
}

// CheckAcceptable verifies a new-flow gift can be accepted right now.
func (g *Gift) CheckAcceptable(now time.Time) error {
	if g.Flow == FlowLegacy {
		if g.Status != StatusSent {
			return fmt.Errorf("%w: status %s", ErrInvalidTransition, g.Status)
		}
		return nil
	}
	if g.Status != StatusPaid {
		return fmt.Errorf("%w: status %s", ErrInvalidTransition, g.Status)
	}
	if !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// Abandoned reports whether a CREATED gift has lingered past the
// abandonment window.
func (g *Gift) Abandoned(now time.Time) bool {
	return g.Status == StatusCreated && now.Sub(g.CreatedAt) > AbandonedAfter
}
