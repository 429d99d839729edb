package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// Settlement errors. ErrAlreadySettled marks an idempotent replay, not
// a failure.
var (
	ErrAlreadySettled  = errors.New("PAYMENT_ALREADY_SETTLED: payment is in a terminal state")
	ErrPaymentNotFound = errors.New("PAYMENT_NOT_FOUND: no payment matches this reference")
	ErrWrongKind       = errors.New("VALIDATION_ERROR: payment kind does not match the callback")
)

// DepositInput describes a real-cash deposit initiation.
type DepositInput struct {
	UserID            int64
	Provider          fees.Provider
	Amount            money.Amount
	PhoneNumber       string
	MerchantReference string
}

// InitiateDeposit persists the PENDING payment row with its fee
// decomposition. The provider session is opened by the caller after
// commit; the row existing first is what makes the webhook replayable.
func (r *Runner) InitiateDeposit(ctx context.Context, in DepositInput) (*relationaldb.PaymentTransaction, error) {
	if !in.Amount.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}
	quote, err := fees.Deposit(in.Provider, in.Amount)
	if err != nil {
		return nil, fmt.Errorf("VALIDATION_ERROR: %v", err)
	}

	var payment *relationaldb.PaymentTransaction
	err = r.run(ctx, "deposit_initiate", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		user, err := loadActiveUser(ctx, tx, in.UserID, now)
		if err != nil {
			return err
		}

		payment = &relationaldb.PaymentTransaction{
			UserID:             user.ID,
			Provider:           string(in.Provider),
			Kind:               relationaldb.PaymentDeposit,
			MerchantReference:  in.MerchantReference,
			GrossAmount:        in.Amount,
			ProviderFee:        quote.ProviderFee,
			PlatformCommission: quote.PlatformCommission,
			NetAmount:          quote.Net,
			Status:             relationaldb.PaymentPending,
			PhoneNumber:        in.PhoneNumber,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		_, err = tx.Payments().CreatePayment(ctx, payment)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ConfirmDepositResult is the committed outcome of a deposit callback.
type ConfirmDepositResult struct {
	PaymentID  int64
	UserID     int64
	NetToUser  money.Amount
	Commission money.Amount
}

// ConfirmDeposit settles a completed deposit callback: the user is
// credited the net amount and the platform commission reaches the
// treasury. Replays of a settled payment return ErrAlreadySettled.
func (r *Runner) ConfirmDeposit(ctx context.Context, provider fees.Provider, merchantReference, providerReference string) (*ConfirmDepositResult, error) {
	var result *ConfirmDepositResult
	err := r.run(ctx, "deposit_confirm", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		payment, err := lockPayment(ctx, tx, provider, merchantReference)
		if err != nil {
			return err
		}
		if payment.Kind != relationaldb.PaymentDeposit {
			return ErrWrongKind
		}

		description := fmt.Sprintf("Depot %s - %s FCFA", payment.Provider, payment.GrossAmount.StringFCFA())
		if _, err := creditReal(ctx, tx, payment.UserID, payment.NetAmount,
			ledger.KindDepositReal, description, merchantReference, now); err != nil {
			return err
		}

		treasury, err := applyTreasury(ctx, tx, payment.PlatformCommission, ledger.KindTreasuryFee, now)
		if err != nil {
			return err
		}

		payment.Status = relationaldb.PaymentCompleted
		payment.ProviderReference = providerReference
		payment.UpdatedAt = now
		payment.CompletedAt = &now
		if err := tx.Payments().UpdatePayment(ctx, payment); err != nil {
			return err
		}

		balance, err := tx.Balances().GetRealBalance(ctx, payment.UserID)
		if err != nil {
			return err
		}
		ev.emit(balanceEvent(payment.UserID, balance.Available, now))
		ev.emit(notifyEvent(payment.UserID, "deposit",
			fmt.Sprintf("Depot de %s FCFA credite", payment.NetAmount.StringFCFA()), now))
		ev.emit(Event{Type: EventTreasuryUpdate,
			Payload: map[string]interface{}{"balance": treasury.Balance.StringFCFA()}, At: now})

		result = &ConfirmDepositResult{
			PaymentID:  payment.ID,
			UserID:     payment.UserID,
			NetToUser:  payment.NetAmount,
			Commission: payment.PlatformCommission,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ConfirmPayout acknowledges a payout confirmation callback. The money
// was accounted for at initiation; only the status moves.
func (r *Runner) ConfirmPayout(ctx context.Context, provider fees.Provider, merchantReference, providerReference string) error {
	return r.run(ctx, "payout_confirm", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		payment, err := lockPayment(ctx, tx, provider, merchantReference)
		if err != nil {
			return err
		}
		if payment.Kind != relationaldb.PaymentWithdrawal {
			return ErrWrongKind
		}

		payment.Status = relationaldb.PaymentCompleted
		payment.ProviderReference = providerReference
		payment.UpdatedAt = now
		payment.CompletedAt = &now
		if err := tx.Payments().UpdatePayment(ctx, payment); err != nil {
			return err
		}

		ev.emit(notifyEvent(payment.UserID, "withdrawal",
			fmt.Sprintf("Retrait de %s FCFA effectue", payment.NetAmount.StringFCFA()), now))
		return nil
	})
}

// FailPayment records a provider-reported failure on a pending payment.
func (r *Runner) FailPayment(ctx context.Context, provider fees.Provider, merchantReference, reason string) error {
	return r.run(ctx, "payment_fail", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		payment, err := lockPayment(ctx, tx, provider, merchantReference)
		if err != nil {
			return err
		}

		payment.Status = relationaldb.PaymentFailed
		payment.FailureReason = reason
		payment.UpdatedAt = now
		if err := tx.Payments().UpdatePayment(ctx, payment); err != nil {
			return err
		}

		ev.emit(notifyEvent(payment.UserID, "payment_failed",
			fmt.Sprintf("Paiement %s echoue", merchantReference), now))
		return nil
	})
}

// lockPayment takes the row lock on a pending payment, mapping
// not-found and terminal states to the settlement sentinels.
func lockPayment(ctx context.Context, tx relationaldb.TransactionContext,
	provider fees.Provider, merchantReference string) (*relationaldb.PaymentTransaction, error) {

	payment, err := tx.Payments().GetPaymentByReferenceForUpdate(ctx, string(provider), merchantReference)
	if err != nil {
		if errors.Is(err, relationaldb.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	switch payment.Status {
	case relationaldb.PaymentCompleted, relationaldb.PaymentFailed, relationaldb.PaymentCancelled:
		return nil, ErrAlreadySettled
	}
	return payment, nil
}
