package ledger

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
)

// Ledger operation errors.
var (
	ErrInsufficientRealFunds    = errors.New("INSUFFICIENT_REAL_FUNDS: available balance below debit amount")
	ErrInsufficientVirtualFunds = errors.New("INSUFFICIENT_VIRTUAL_FUNDS: virtual balance below debit amount")
	ErrInsufficientLocked       = errors.New("locked balance below unlock amount")
	ErrNonPositiveAmount        = errors.New("VALIDATION_ERROR: amount must be positive")
	ErrVirtualGuard             = errors.New("non-redistribution kind may not touch the virtual balance")
	ErrTreasuryNegative         = errors.New("INTEGRITY_ERROR: treasury balance would go negative")
)

// RealBalance is a user's real-cash balance. Available funds can be
// spent; locked funds are reserved by pending operations.
type RealBalance struct {
	UserID    int64
	Available money.Amount
	Locked    money.Amount
	UpdatedAt time.Time
}

// VirtualBalance is a user's redistribution-only balance. It is never
// touched by purchases, sales, gifts or withdrawals.
type VirtualBalance struct {
	UserID    int64
	Balance   money.Amount
	UpdatedAt time.Time
}

// Treasury is the singleton platform purse.
type Treasury struct {
	Balance            money.Amount
	TotalFeesCollected money.Amount
	TotalTransactions  int64
	LastTransactionAt  time.Time
}

// Entry statuses.
const (
	EntryStatusPending   = "pending"
	EntryStatusCompleted = "completed"
	EntryStatusFailed    = "failed"
)

// Entry is one append-only transaction log record. Amount is always
// positive; the sign lives in the kind's direction.
type Entry struct {
	ID          int64
	UserID      int64
	Amount      money.Amount
	Kind        Kind
	Description string
	Status      string
	Reference   string
	CreatedAt   time.Time
}

// CreditReal adds amount to the available real balance. The kind must be
// a real-cash credit.
func (b *RealBalance) CreditReal(amount money.Amount, kind Kind) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if kind.Target() != TargetReal || kind.Direction() != DirectionCredit {
		return fmt.Errorf("%w: kind %s", ErrVirtualGuard, kind)
	}
	b.Available = b.Available.Add(amount).RoundFCFA()
	return nil
}

// DebitReal removes amount from the available real balance. The check
// happens before the decrement: available must already cover the amount.
func (b *RealBalance) DebitReal(amount money.Amount, kind Kind) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if kind.Target() != TargetReal || kind.Direction() != DirectionDebit {
		return fmt.Errorf("%w: kind %s", ErrVirtualGuard, kind)
	}
	if b.Available.LessThan(amount) {
		return fmt.Errorf("%w: available %s, requested %s",
			ErrInsufficientRealFunds, b.Available.StringFCFA(), amount.StringFCFA())
	}
	b.Available = b.Available.Sub(amount).RoundFCFA()
	return nil
}

// LockFunds moves amount from available to locked.
func (b *RealBalance) LockFunds(amount money.Amount) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if b.Available.LessThan(amount) {
		return fmt.Errorf("%w: available %s, requested lock %s",
			ErrInsufficientRealFunds, b.Available.StringFCFA(), amount.StringFCFA())
	}
	b.Available = b.Available.Sub(amount)
	b.Locked = b.Locked.Add(amount)
	return nil
}

// UnlockOutcome decides what happens to locked funds on settlement.
type UnlockOutcome int

const (
	// UnlockRelease returns the funds to available.
	UnlockRelease UnlockOutcome = iota
	// UnlockSettle consumes the funds: they were spent by the operation.
	UnlockSettle
)

// UnlockFunds settles a previous LockFunds: either releases back to
// available or consumes the locked amount.
func (b *RealBalance) UnlockFunds(amount money.Amount, outcome UnlockOutcome) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if b.Locked.LessThan(amount) {
		return fmt.Errorf("%w: locked %s, requested %s",
			ErrInsufficientLocked, b.Locked.StringFCFA(), amount.StringFCFA())
	}
	b.Locked = b.Locked.Sub(amount)
	if outcome == UnlockRelease {
		b.Available = b.Available.Add(amount)
	}
	return nil
}

// Total is available + locked.
func (b *RealBalance) Total() money.Amount {
	return b.Available.Add(b.Locked)
}

// CreditVirtual adds amount to the virtual balance. Only redistribution
// kinds are accepted.
func (v *VirtualBalance) CreditVirtual(amount money.Amount, kind Kind) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !kind.IsRedistribution() {
		return fmt.Errorf("%w: kind %s", ErrVirtualGuard, kind)
	}
	v.Balance = v.Balance.Add(amount).RoundFCFA()
	return nil
}

// DebitVirtual removes amount from the virtual balance. Only
// redistribution kinds are accepted.
func (v *VirtualBalance) DebitVirtual(amount money.Amount, kind Kind) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if !kind.IsRedistribution() {
		return fmt.Errorf("%w: kind %s", ErrVirtualGuard, kind)
	}
	if v.Balance.LessThan(amount) {
		return fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientVirtualFunds, v.Balance.StringFCFA(), amount.StringFCFA())
	}
	v.Balance = v.Balance.Sub(amount).RoundFCFA()
	return nil
}

// Apply books a signed delta against the treasury. The balance may swing
// negative transiently inside a transaction; CheckCommit enforces the
// post-commit invariant.
func (t *Treasury) Apply(delta money.Amount, kind Kind, at time.Time) error {
	if kind.Target() != TargetTreasury {
		return fmt.Errorf("kind %s does not target the treasury", kind)
	}
	t.Balance = t.Balance.Add(delta).RoundFCFA()
	if kind == KindTreasuryFee && delta.IsPositive() {
		t.TotalFeesCollected = t.TotalFeesCollected.Add(delta).RoundFCFA()
	}
	t.TotalTransactions++
	t.LastTransactionAt = at
	return nil
}

// CheckCommit validates the treasury's post-transaction invariant.
func (t *Treasury) CheckCommit() error {
	if t.Balance.IsNegative() {
		return fmt.Errorf("%w: balance %s", ErrTreasuryNegative, t.Balance.StringFCFA())
	}
	return nil
}

// socialValueRe matches the legacy free-form purchase descriptor,
// e.g. "Achat BOOM #12 - Valeur sociale: 5000.00 FCFA".
var socialValueRe = regexp.MustCompile(`Valeur sociale:\s*([0-9]+(?:\.[0-9]+)?)\s*FCFA`)

// ParseSocialValueDescriptor extracts the purchase-time social value from
// a legacy transaction description. New rows persist the value as a
// structured column; this parser only serves historical records.
func ParseSocialValueDescriptor(description string) (money.Amount, bool) {
	m := socialValueRe.FindStringSubmatch(description)
	if m == nil {
		return money.Zero, false
	}
	a, err := money.NewFromString(m[1])
	if err != nil {
		return money.Zero, false
	}
	return a, true
}
