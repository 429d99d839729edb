package pipeline

import (
	"context"
	"fmt"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// PurchaseInput describes a primary purchase. Either BoomID or TokenID
// selects the asset.
type PurchaseInput struct {
	BuyerID  int64
	BoomID   int64
	TokenID  string
	Quantity int64
}

// PurchaseResult is the committed outcome of a primary purchase.
type PurchaseResult struct {
	BoomID      int64
	Quantity    int64
	MarketValue money.Amount
	PerUnitFee  money.Amount
	Total       money.Amount
	HoldingIDs  []int64
	EntryID     int64
	Social      socialvalue.Outcome
	Audited     bool
}

// Purchase runs the primary purchase pipeline: availability check, tier
// fee, buyer debit, edition accounting, holding creation, social buy
// impact and treasury credit, all in one transaction.
func (r *Runner) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	if in.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	var result *PurchaseResult
	err := r.run(ctx, "purchase", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		buyer, err := loadActiveUser(ctx, tx, in.BuyerID, now)
		if err != nil {
			return err
		}

		boom, err := lockBoom(ctx, tx, in.BoomID, in.TokenID)
		if err != nil {
			return err
		}
		if err := boom.CheckAvailability(in.Quantity); err != nil {
			return err
		}

		marketValue := boom.MarketValue()
		perUnitFee := fees.Purchase(marketValue, buyer.Tier, 1).PlatformCommission
		quote := fees.Purchase(marketValue, buyer.Tier, in.Quantity)

		description := fmt.Sprintf("Achat BOOM #%d x%d - Valeur sociale: %s FCFA",
			boom.ID, in.Quantity, marketValue.StringFCFA())
		entryID, err := debitReal(ctx, tx, buyer.ID, quote.Gross,
			ledger.KindBoomPurchaseReal, description, boom.TokenID, now)
		if err != nil {
			return err
		}

		// Ownership and edition accounting.
		if boom.IsSingleEdition() {
			owner := buyer.ID
			boom.OwnerID = &owner
		} else {
			boom.ReserveEditions(in.Quantity)
		}

		holdingIDs := make([]int64, 0, in.Quantity)
		for i := int64(0); i < in.Quantity; i++ {
			holding := &inventory.Holding{
				UserID:                buyer.ID,
				BoomID:                boom.ID,
				PurchasePrice:         marketValue,
				FeesPaid:              perUnitFee,
				SocialValueAtPurchase: marketValue,
				IsTransferable:        true,
				AcquiredAt:            now,
			}
			id, err := tx.Holdings().CreateHolding(ctx, holding)
			if err != nil {
				return err
			}
			holdingIDs = append(holdingIDs, id)
		}

		holders, err := tx.Holdings().CountHoldersOfBoom(ctx, boom.ID)
		if err != nil {
			return err
		}
		boom.UniqueHolders = holders

		outcome, err := socialvalue.Apply(&boom.Social, socialvalue.ActionBuy,
			socialvalue.Metadata{TransactionAmount: quote.Gross}, now)
		if err != nil {
			return err
		}
		boom.UpdatedAt = now
		if err := tx.Booms().UpdateBoom(ctx, boom); err != nil {
			return err
		}

		treasury, err := applyTreasury(ctx, tx, quote.PlatformCommission, ledger.KindTreasuryFee, now)
		if err != nil {
			return err
		}

		audited := false
		if quote.Gross.GreaterThan(largeTransactionThreshold) {
			_, err := tx.Admin().AppendAudit(ctx, &relationaldb.AdminAuditEntry{
				UserID:    buyer.ID,
				Action:    "large_purchase",
				Detail:    description,
				Amount:    quote.Gross,
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
			audited = true
		}

		balance, err := tx.Balances().GetRealBalance(ctx, buyer.ID)
		if err != nil {
			return err
		}
		ev.emit(balanceEvent(buyer.ID, balance.Available, now))
		ev.emit(socialEvent(boom.ID, boom.MarketValue(), now))
		if outcome.Event != "" {
			ev.emit(Event{Type: EventSocialEvent, BoomID: boom.ID,
				Payload: map[string]interface{}{"event": string(outcome.Event)}, At: now})
		}
		ev.emit(notifyEvent(buyer.ID, "purchase",
			fmt.Sprintf("Achat de %s confirme", boom.Name), now))
		ev.emit(Event{Type: EventTreasuryUpdate,
			Payload: map[string]interface{}{"balance": treasury.Balance.StringFCFA()}, At: now})

		result = &PurchaseResult{
			BoomID:      boom.ID,
			Quantity:    in.Quantity,
			MarketValue: marketValue,
			PerUnitFee:  perUnitFee,
			Total:       quote.Gross,
			HoldingIDs:  holdingIDs,
			EntryID:     entryID,
			Social:      outcome,
			Audited:     audited,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockBoom resolves the asset by ID or token and takes its row lock.
func lockBoom(ctx context.Context, tx relationaldb.TransactionContext, boomID int64, tokenID string) (*inventory.Boom, error) {
	if boomID != 0 {
		boom, err := tx.Booms().GetBoomForUpdate(ctx, boomID)
		if err != nil {
			return nil, mapBoomErr(err)
		}
		return boom, nil
	}
	boom, err := tx.Booms().GetBoomByToken(ctx, tokenID)
	if err != nil {
		return nil, mapBoomErr(err)
	}
	// Re-read under lock now that the ID is known.
	boom, err = tx.Booms().GetBoomForUpdate(ctx, boom.ID)
	if err != nil {
		return nil, mapBoomErr(err)
	}
	return boom, nil
}

func mapBoomErr(err error) error {
	if err == relationaldb.ErrBoomNotFound {
		return inventory.ErrBoomUnavailable
	}
	return err
}
