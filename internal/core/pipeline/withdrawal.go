package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// Withdrawal amount bounds in FCFA.
var (
	WithdrawalMin = money.New(1_000)
	WithdrawalMax = money.New(1_000_000)
)

// WithdrawalInput describes converting a held BOOM into a mobile-money
// payout.
type WithdrawalInput struct {
	UserID      int64
	HoldingID   int64
	Provider    fees.Provider
	PhoneNumber string
}

// WithdrawalResult is the committed outcome: the holding is consumed
// and a pending payment row awaits the provider payout.
type WithdrawalResult struct {
	Payment  *relationaldb.PaymentTransaction
	Amount   money.Amount
	Fee      money.Amount
	Net      money.Amount
	UserGain money.Amount
	BoomID   int64
}

// Withdrawal runs the BOOM withdrawal pipeline. The BOOM disappears,
// the treasury keeps the 3% fee and pays out any appreciation beyond
// the original purchase price. The external payout is initiated by the
// caller after commit, using the returned payment row.
func (r *Runner) Withdrawal(ctx context.Context, in WithdrawalInput) (*WithdrawalResult, error) {
	if !in.Provider.Valid() {
		return nil, fmt.Errorf("VALIDATION_ERROR: unknown provider %q", in.Provider)
	}

	var result *WithdrawalResult
	err := r.run(ctx, "withdrawal", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		user, err := loadActiveUser(ctx, tx, in.UserID, now)
		if err != nil {
			return err
		}

		peek, err := tx.Holdings().GetHolding(ctx, in.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}
		boom, err := tx.Booms().GetBoomForUpdate(ctx, peek.BoomID)
		if err != nil {
			return mapBoomErr(err)
		}
		if !boom.IsActive {
			return inventory.ErrBoomUnavailable
		}
		holding, err := tx.Holdings().GetHoldingForUpdate(ctx, in.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}
		if err := holding.CheckOwnedBy(user.ID); err != nil {
			return err
		}
		if holding.IsSold {
			return inventory.ErrHoldingSold
		}
		if holding.InEscrow() {
			return ErrHoldingInGift
		}

		amount := boom.MarketValue()
		if amount.LessThan(WithdrawalMin) || amount.GreaterThan(WithdrawalMax) {
			return fmt.Errorf("%w: %s FCFA not in [%s, %s]", ErrAmountOutOfRange,
				amount.StringFCFA(), WithdrawalMin.StringFCFA(), WithdrawalMax.StringFCFA())
		}

		quote := fees.BoomWithdrawal(amount)
		purchasePrice := resolvePurchasePrice(ctx, tx, holding)
		userGain := amount.Sub(purchasePrice)

		// Treasury keeps the fee and funds the appreciation. The
		// non-negative check happens on the final state.
		treasury, err := tx.Treasury().GetTreasuryForUpdate(ctx)
		if err != nil {
			return err
		}
		if err := treasury.Apply(quote.PlatformCommission, ledger.KindTreasuryFee, now); err != nil {
			return err
		}
		if userGain.IsPositive() {
			if err := treasury.Apply(userGain.Neg(), ledger.KindTreasuryPayout, now); err != nil {
				return err
			}
		}
		if err := treasury.CheckCommit(); err != nil {
			return err
		}
		if err := tx.Treasury().UpdateTreasury(ctx, treasury); err != nil {
			return err
		}

		// The BOOM is consumed: hard delete.
		if err := tx.Holdings().DeleteHolding(ctx, holding.ID); err != nil {
			return err
		}
		holders, err := tx.Holdings().CountHoldersOfBoom(ctx, boom.ID)
		if err != nil {
			return err
		}
		boom.UniqueHolders = holders
		if boom.IsSingleEdition() {
			boom.OwnerID = nil
		}
		boom.UpdatedAt = now
		if err := tx.Booms().UpdateBoom(ctx, boom); err != nil {
			return err
		}

		payment := &relationaldb.PaymentTransaction{
			UserID:             user.ID,
			Provider:           string(in.Provider),
			Kind:               relationaldb.PaymentWithdrawal,
			MerchantReference:  fmt.Sprintf("BOOMS_WITHDRAWAL_%d_%d", user.ID, now.UnixMilli()),
			GrossAmount:        amount,
			PlatformCommission: quote.PlatformCommission,
			NetAmount:          quote.Net,
			Status:             relationaldb.PaymentPending,
			PhoneNumber:        in.PhoneNumber,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if _, err := tx.Payments().CreatePayment(ctx, payment); err != nil {
			return err
		}

		if _, err := tx.Wallet().AppendEntry(ctx, &ledger.Entry{
			UserID:      user.ID,
			Amount:      amount,
			Kind:        ledger.KindWithdrawalReal,
			Description: fmt.Sprintf("Retrait BOOM #%d - Valeur sociale: %s FCFA", boom.ID, amount.StringFCFA()),
			Status:      ledger.EntryStatusPending,
			Reference:   payment.MerchantReference,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		ev.emit(notifyEvent(user.ID, "withdrawal",
			fmt.Sprintf("Retrait de %s en cours: %s FCFA net", boom.Name, quote.Net.StringFCFA()), now))
		ev.emit(Event{Type: EventTreasuryUpdate,
			Payload: map[string]interface{}{"balance": treasury.Balance.StringFCFA()}, At: now})

		result = &WithdrawalResult{
			Payment:  payment,
			Amount:   amount,
			Fee:      quote.PlatformCommission,
			Net:      quote.Net,
			UserGain: userGain,
			BoomID:   boom.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolvePurchasePrice prefers the structured column and falls back to
// parsing the legacy "Valeur sociale: X FCFA" descriptor from the
// original purchase entry.
func resolvePurchasePrice(ctx context.Context, tx relationaldb.TransactionContext, holding *inventory.Holding) money.Amount {
	if holding.SocialValueAtPurchase.IsPositive() {
		return holding.SocialValueAtPurchase
	}
	// Historical entries name the BOOM in their descriptor; the scan
	// must not pick up a purchase of another asset.
	marker := fmt.Sprintf("BOOM #%d ", holding.BoomID)
	entries, err := tx.Wallet().ListEntriesByUser(ctx, holding.UserID, 200, 0)
	if err == nil {
		for _, e := range entries {
			if e.Kind != ledger.KindBoomPurchaseReal || !strings.Contains(e.Description, marker) {
				continue
			}
			if v, ok := ledger.ParseSocialValueDescriptor(e.Description); ok {
				return v
			}
		}
	}
	return holding.PurchasePrice
}
