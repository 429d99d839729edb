package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// SaleInput describes a secondary sale of one specific holding.
type SaleInput struct {
	SellerID  int64
	BuyerID   int64
	HoldingID int64
	SellPrice money.Amount
}

// SaleResult is the committed outcome of a secondary sale.
type SaleResult struct {
	BoomID       int64
	OldHoldingID int64
	NewHoldingID int64
	SellPrice    money.Amount
	Fee          money.Amount
	SellerNet    money.Amount
	Social       socialvalue.Outcome
}

// Sale runs the secondary-sale pipeline: buyer pays the listed price
// from real cash, the treasury takes 5% off the seller's proceeds and
// the holding changes hands. Virtual balances are never touched.
func (r *Runner) Sale(ctx context.Context, in SaleInput) (*SaleResult, error) {
	if !in.SellPrice.IsPositive() {
		return nil, ledger.ErrNonPositiveAmount
	}
	if in.SellerID == in.BuyerID {
		return nil, ErrSelfTransfer
	}

	var result *SaleResult
	err := r.run(ctx, "sale", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		seller, err := loadActiveUser(ctx, tx, in.SellerID, now)
		if err != nil {
			return err
		}
		buyer, err := loadActiveUser(ctx, tx, in.BuyerID, now)
		if err != nil {
			return err
		}

		// Peek at the holding to learn the BOOM, then lock in global
		// order: BOOM first, holding second.
		peek, err := tx.Holdings().GetHolding(ctx, in.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}
		boom, err := tx.Booms().GetBoomForUpdate(ctx, peek.BoomID)
		if err != nil {
			return mapBoomErr(err)
		}
		holding, err := tx.Holdings().GetHoldingForUpdate(ctx, in.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}
		if err := holding.CheckOwnedBy(seller.ID); err != nil {
			return err
		}
		if err := holding.CheckTransferable(now); err != nil {
			return err
		}

		quote := fees.SecondarySale(in.SellPrice)

		// Balances in ascending user ID, buyer's debit checked first.
		reference := boom.TokenID
		buyDesc := fmt.Sprintf("Achat marche BOOM #%d - Valeur sociale: %s FCFA",
			boom.ID, boom.MarketValue().StringFCFA())
		sellDesc := fmt.Sprintf("Vente marche BOOM #%d", boom.ID)

		first, second := in.BuyerID, in.SellerID
		if second < first {
			first, second = second, first
		}
		for _, id := range []int64{first, second} {
			if id == in.BuyerID {
				if _, err := debitReal(ctx, tx, buyer.ID, in.SellPrice,
					ledger.KindBoomPurchaseReal, buyDesc, reference, now); err != nil {
					return err
				}
			} else {
				if _, err := creditReal(ctx, tx, seller.ID, quote.Net,
					ledger.KindBoomSellReal, sellDesc, reference, now); err != nil {
					return err
				}
			}
		}

		holding.Settle(buyer.ID, now)
		if err := tx.Holdings().UpdateHolding(ctx, holding); err != nil {
			return err
		}

		newHolding := &inventory.Holding{
			UserID:                buyer.ID,
			BoomID:                boom.ID,
			PurchasePrice:         in.SellPrice,
			FeesPaid:              money.Zero,
			SocialValueAtPurchase: boom.MarketValue(),
			IsTransferable:        true,
			AcquiredAt:            now,
		}
		newID, err := tx.Holdings().CreateHolding(ctx, newHolding)
		if err != nil {
			return err
		}

		if boom.IsSingleEdition() {
			owner := buyer.ID
			boom.OwnerID = &owner
		}
		holders, err := tx.Holdings().CountHoldersOfBoom(ctx, boom.ID)
		if err != nil {
			return err
		}
		boom.UniqueHolders = holders

		outcome, err := socialvalue.Apply(&boom.Social, socialvalue.ActionSell,
			socialvalue.Metadata{TransactionAmount: in.SellPrice}, now)
		if err != nil {
			return err
		}
		boom.UpdatedAt = now
		if err := tx.Booms().UpdateBoom(ctx, boom); err != nil {
			return err
		}

		if _, err := applyTreasury(ctx, tx, quote.PlatformCommission, ledger.KindTreasuryFee, now); err != nil {
			return err
		}

		for _, id := range []int64{buyer.ID, seller.ID} {
			balance, err := tx.Balances().GetRealBalance(ctx, id)
			if err != nil {
				return err
			}
			ev.emit(balanceEvent(id, balance.Available, now))
		}
		ev.emit(socialEvent(boom.ID, boom.MarketValue(), now))
		ev.emit(notifyEvent(seller.ID, "sale",
			fmt.Sprintf("Vente de %s pour %s FCFA", boom.Name, in.SellPrice.StringFCFA()), now))
		ev.emit(notifyEvent(buyer.ID, "purchase",
			fmt.Sprintf("Achat de %s confirme", boom.Name), now))

		result = &SaleResult{
			BoomID:       boom.ID,
			OldHoldingID: holding.ID,
			NewHoldingID: newID,
			SellPrice:    in.SellPrice,
			Fee:          quote.PlatformCommission,
			SellerNet:    quote.Net,
			Social:       outcome,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mapHoldingErr(err error) error {
	if errors.Is(err, relationaldb.ErrHoldingNotFound) {
		return inventory.ErrHoldingNotOwned
	}
	return err
}
