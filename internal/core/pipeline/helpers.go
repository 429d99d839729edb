package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// Input validation errors shared across pipelines.
var (
	ErrInvalidQuantity  = errors.New("VALIDATION_ERROR: quantity must be >= 1")
	ErrSelfTransfer     = errors.New("VALIDATION_ERROR: sender and receiver are the same user")
	ErrAmountOutOfRange = errors.New("VALIDATION_ERROR: amount outside allowed bounds")
	ErrNotGiftReceiver  = errors.New("GIFT_NOT_FOUND: gift is not addressed to this user")
	ErrHoldingInGift    = errors.New("HOLDING_NOT_TRANSFERABLE: holding is escrowed by a pending gift")
)

// largeTransactionThreshold flags transactions for manual admin review.
var largeTransactionThreshold = money.New(50_000)

// loadActiveUser fetches a user and verifies it may transact.
func loadActiveUser(ctx context.Context, tx relationaldb.TransactionContext, userID int64, now time.Time) (*inventory.User, error) {
	user, err := tx.Users().GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, relationaldb.ErrUserNotFound) {
			return nil, inventory.ErrUserNotFound
		}
		return nil, err
	}
	if err := user.CanTransact(now); err != nil {
		return nil, err
	}
	return user, nil
}

// debitReal locks the user's real balance, debits it and appends the
// transaction log entry. Returns the entry ID.
func debitReal(ctx context.Context, tx relationaldb.TransactionContext, userID int64,
	amount money.Amount, kind ledger.Kind, description, reference string, now time.Time) (int64, error) {

	balance, err := tx.Balances().GetRealBalanceForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := balance.DebitReal(amount, kind); err != nil {
		return 0, err
	}
	balance.UpdatedAt = now
	if err := tx.Balances().UpdateRealBalance(ctx, balance); err != nil {
		return 0, err
	}
	return tx.Wallet().AppendEntry(ctx, &ledger.Entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Status:      ledger.EntryStatusCompleted,
		Reference:   reference,
		CreatedAt:   now,
	})
}

// creditReal locks the user's real balance, credits it and appends the
// transaction log entry.
func creditReal(ctx context.Context, tx relationaldb.TransactionContext, userID int64,
	amount money.Amount, kind ledger.Kind, description, reference string, now time.Time) (int64, error) {

	balance, err := tx.Balances().GetRealBalanceForUpdate(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := balance.CreditReal(amount, kind); err != nil {
		return 0, err
	}
	balance.UpdatedAt = now
	if err := tx.Balances().UpdateRealBalance(ctx, balance); err != nil {
		return 0, err
	}
	return tx.Wallet().AppendEntry(ctx, &ledger.Entry{
		UserID:      userID,
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Status:      ledger.EntryStatusCompleted,
		Reference:   reference,
		CreatedAt:   now,
	})
}

// applyTreasury locks the treasury (always last in the lock order),
// books the signed delta and enforces the non-negative commit invariant.
func applyTreasury(ctx context.Context, tx relationaldb.TransactionContext,
	delta money.Amount, kind ledger.Kind, now time.Time) (*ledger.Treasury, error) {

	treasury, err := tx.Treasury().GetTreasuryForUpdate(ctx)
	if err != nil {
		return nil, err
	}
	if err := treasury.Apply(delta, kind, now); err != nil {
		return nil, err
	}
	if err := treasury.CheckCommit(); err != nil {
		return nil, err
	}
	if err := tx.Treasury().UpdateTreasury(ctx, treasury); err != nil {
		return nil, err
	}
	return treasury, nil
}

// balanceEvent builds a balance_update broadcast for a user.
func balanceEvent(userID int64, available money.Amount, at time.Time) Event {
	return Event{
		Type:   EventBalanceUpdate,
		UserID: userID,
		Payload: map[string]interface{}{
			"available": available.StringFCFA(),
			"currency":  money.CurrencyFCFA,
		},
		At: at,
	}
}

// socialEvent builds a social_value_update broadcast for a BOOM.
func socialEvent(boomID int64, marketValue money.Amount, at time.Time) Event {
	return Event{
		Type:   EventSocialValueUpdate,
		BoomID: boomID,
		Payload: map[string]interface{}{
			"market_value": marketValue.StringFCFA(),
		},
		At: at,
	}
}

// notifyEvent builds a user_notification broadcast.
func notifyEvent(userID int64, kind, message string, at time.Time) Event {
	return Event{
		Type:   EventUserNotification,
		UserID: userID,
		Payload: map[string]interface{}{
			"kind":    kind,
			"message": message,
		},
		At: at,
	}
}
