package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/gift"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// GiftSendInput describes a new-flow gift send.
type GiftSendInput struct {
	SenderID   int64
	ReceiverID int64
	HoldingID  int64
	Message    string
}

// GiftSendResult is the committed outcome of a gift send: the gift is
// PAID and the holding escrowed.
type GiftSendResult struct {
	GiftID       int64
	Reference    string
	GiftFee      money.Amount
	SharingFee   money.Amount
	TotalFees    money.Amount
	NetToDeliver money.Amount
	ExpiresAt    time.Time
}

// GiftAcceptInput identifies the gift and the accepting user.
type GiftAcceptInput struct {
	GiftID     int64
	ReceiverID int64
}

// GiftAcceptResult is the committed outcome of a delivery.
type GiftAcceptResult struct {
	GiftID       int64
	NewHoldingID int64
	NetCredited  money.Amount
	Social       socialvalue.Outcome
}

// SendGift runs the gift send pipeline. The sender pays only the fees;
// the asset goes into escrow until the receiver accepts, declines, or
// the gift expires.
func (r *Runner) SendGift(ctx context.Context, in GiftSendInput) (*GiftSendResult, error) {
	if in.SenderID == in.ReceiverID {
		return nil, ErrSelfTransfer
	}

	var result *GiftSendResult
	err := r.run(ctx, "gift_send", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		sender, err := loadActiveUser(ctx, tx, in.SenderID, now)
		if err != nil {
			return err
		}
		receiver, err := loadActiveUser(ctx, tx, in.ReceiverID, now)
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
		holding, err := tx.Holdings().GetHoldingForUpdate(ctx, in.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}
		if err := holding.CheckOwnedBy(sender.ID); err != nil {
			return err
		}
		if err := holding.CheckTransferable(now); err != nil {
			return err
		}

		marketValue := boom.MarketValue()
		quote := fees.Gift(marketValue, sender.Tier)

		g := &gift.Gift{
			SenderID:             sender.ID,
			ReceiverID:           receiver.ID,
			HoldingID:            holding.ID,
			BoomID:               boom.ID,
			Message:              in.Message,
			GrossAmount:          quote.Gross,
			FeeAmount:            quote.GiftFee,
			NetAmount:            quote.Net,
			TransactionReference: gift.NewReference(now),
			Status:               gift.StatusCreated,
			Flow:                 gift.FlowNew,
			CreatedAt:            now,
			ExpiresAt:            now.Add(gift.DefaultExpiry),
		}
		if _, err := tx.Gifts().CreateGift(ctx, g); err != nil {
			return err
		}

		// Escrow the asset before touching money.
		holding.Escrow(now)
		holding.ReceiverID = &receiver.ID
		if err := tx.Holdings().UpdateHolding(ctx, holding); err != nil {
			return err
		}

		description := fmt.Sprintf("Frais cadeau BOOM #%d pour %s", boom.ID, receiver.FullName)
		entryID, err := debitReal(ctx, tx, sender.ID, quote.Gross,
			ledger.KindGiftFeeReal, description, g.TransactionReference, now)
		if err != nil {
			// Insufficient funds rolls the whole transaction back; the
			// gift row is never persisted.
			return err
		}
		g.WalletTransactionIDs = append(g.WalletTransactionIDs, entryID)

		if err := g.Transition(gift.StatusPaid, now); err != nil {
			return err
		}
		if err := tx.Gifts().UpdateGift(ctx, g); err != nil {
			return err
		}

		balance, err := tx.Balances().GetRealBalance(ctx, sender.ID)
		if err != nil {
			return err
		}
		ev.emit(balanceEvent(sender.ID, balance.Available, now))
		ev.emit(notifyEvent(receiver.ID, "gift_received",
			fmt.Sprintf("%s vous a envoye un cadeau: %s", sender.FullName, boom.Name), now))
		ev.emit(notifyEvent(sender.ID, "gift_sent",
			fmt.Sprintf("Cadeau %s envoye", boom.Name), now))

		result = &GiftSendResult{
			GiftID:       g.ID,
			Reference:    g.TransactionReference,
			GiftFee:      quote.GiftFee,
			SharingFee:   quote.SharingFee,
			TotalFees:    quote.Gross,
			NetToDeliver: quote.Net,
			ExpiresAt:    g.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AcceptGift runs the delivery pipeline: the asset re-materializes as a
// new holding for the receiver, who is also credited the gift's net
// amount; the fees reach the treasury.
func (r *Runner) AcceptGift(ctx context.Context, in GiftAcceptInput) (*GiftAcceptResult, error) {
	var result *GiftAcceptResult
	var expiredInPlace bool
	err := r.run(ctx, "gift_accept", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()
		expiredInPlace = false

		g, err := tx.Gifts().GetGiftForUpdate(ctx, in.GiftID)
		if err != nil {
			return mapGiftErr(err)
		}
		if g.ReceiverID != in.ReceiverID {
			return ErrNotGiftReceiver
		}
		receiver, err := loadActiveUser(ctx, tx, in.ReceiverID, now)
		if err != nil {
			return err
		}

		if err := g.CheckAcceptable(now); err != nil {
			if errors.Is(err, gift.ErrExpired) {
				// Expire in place and commit that; the caller still gets
				// the expiry error.
				if settleErr := r.settleDeadGift(ctx, tx, g, gift.StatusExpired, now); settleErr != nil {
					return settleErr
				}
				expiredInPlace = true
				ev.emit(notifyEvent(g.SenderID, "gift_expired", "Votre cadeau a expire", now))
				return nil
			}
			return err
		}

		boom, err := tx.Booms().GetBoomForUpdate(ctx, g.BoomID)
		if err != nil {
			return mapBoomErr(err)
		}
		holding, err := tx.Holdings().GetHoldingForUpdate(ctx, g.HoldingID)
		if err != nil {
			return mapHoldingErr(err)
		}

		holding.Settle(receiver.ID, now)
		if err := tx.Holdings().UpdateHolding(ctx, holding); err != nil {
			return err
		}

		marketValue := boom.MarketValue()
		purchasePrice := money.Max(g.NetAmount, money.Max(holding.PurchasePrice, marketValue))
		delivered := now
		newHolding := &inventory.Holding{
			UserID:                receiver.ID,
			BoomID:                boom.ID,
			PurchasePrice:         purchasePrice,
			FeesPaid:              money.Zero,
			SocialValueAtPurchase: marketValue,
			IsTransferable:        true,
			DeliveredAt:           &delivered,
			AcquiredAt:            now,
		}
		newID, err := tx.Holdings().CreateHolding(ctx, newHolding)
		if err != nil {
			return err
		}

		outcome, err := socialvalue.Apply(&boom.Social, socialvalue.ActionGift,
			socialvalue.Metadata{Channel: "gift_new_flow"}, now)
		if err != nil {
			return err
		}
		if boom.IsSingleEdition() {
			owner := receiver.ID
			boom.OwnerID = &owner
		}
		holders, err := tx.Holdings().CountHoldersOfBoom(ctx, boom.ID)
		if err != nil {
			return err
		}
		boom.UniqueHolders = holders
		boom.UpdatedAt = now
		if err := tx.Booms().UpdateBoom(ctx, boom); err != nil {
			return err
		}

		// Internal-share interaction on the receiver.
		shareImpact := marketValue.MulRatio("0.00002").Round(money.ScaleAccumulator)
		if _, err := tx.Interactions().CreateInteraction(ctx, &relationaldb.Interaction{
			UserID:    receiver.ID,
			BoomID:    boom.ID,
			Action:    string(socialvalue.ActionShareInternal),
			Channel:   "gift_new_flow",
			Impact:    shareImpact,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		if _, err := applyTreasury(ctx, tx, g.FeeAmount, ledger.KindTreasuryFee, now); err != nil {
			return err
		}
		if _, err := tx.Wallet().AppendEntry(ctx, &ledger.Entry{
			UserID:      g.SenderID,
			Amount:      g.FeeAmount,
			Kind:        ledger.KindTreasuryFee,
			Description: fmt.Sprintf("Frais cadeau BOOM #%d encaisses", boom.ID),
			Status:      ledger.EntryStatusCompleted,
			Reference:   g.TransactionReference,
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		creditID, err := creditReal(ctx, tx, receiver.ID, g.NetAmount,
			ledger.KindGiftReceivedReal,
			fmt.Sprintf("Cadeau BOOM #%d recu", boom.ID), g.TransactionReference, now)
		if err != nil {
			return err
		}
		g.WalletTransactionIDs = append(g.WalletTransactionIDs, creditID)

		if err := g.Transition(gift.StatusDelivered, now); err != nil {
			return err
		}
		if err := tx.Gifts().UpdateGift(ctx, g); err != nil {
			return err
		}

		balance, err := tx.Balances().GetRealBalance(ctx, receiver.ID)
		if err != nil {
			return err
		}
		ev.emit(balanceEvent(receiver.ID, balance.Available, now))
		ev.emit(socialEvent(boom.ID, boom.MarketValue(), now))
		ev.emit(notifyEvent(receiver.ID, "gift_delivered",
			fmt.Sprintf("Cadeau %s accepte", boom.Name), now))
		ev.emit(notifyEvent(g.SenderID, "gift_delivered",
			fmt.Sprintf("Votre cadeau %s a ete accepte", boom.Name), now))

		result = &GiftAcceptResult{
			GiftID:       g.ID,
			NewHoldingID: newID,
			NetCredited:  g.NetAmount,
			Social:       outcome,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expiredInPlace {
		return nil, gift.ErrExpired
	}
	return result, nil
}

// DeclineGift runs the decline pipeline: the asset returns to the
// sender, the fees stay consumed and reach the treasury.
func (r *Runner) DeclineGift(ctx context.Context, in GiftAcceptInput) error {
	return r.run(ctx, "gift_decline", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		g, err := tx.Gifts().GetGiftForUpdate(ctx, in.GiftID)
		if err != nil {
			return mapGiftErr(err)
		}
		if g.ReceiverID != in.ReceiverID {
			return ErrNotGiftReceiver
		}
		if err := r.settleDeadGift(ctx, tx, g, gift.StatusFailed, now); err != nil {
			return err
		}

		ev.emit(notifyEvent(g.SenderID, "gift_declined", "Votre cadeau a ete refuse", now))
		ev.emit(notifyEvent(g.ReceiverID, "gift_declined", "Cadeau refuse", now))
		return nil
	})
}

// SweepResult reports what a sweeper pass settled.
type SweepResult struct {
	Expired   int
	Abandoned int
}

// SweepGifts settles dead gifts: PAID past expiry become EXPIRED,
// CREATED older than the abandonment window become FAILED. Each gift is
// its own transaction so one bad row never blocks the pass.
func (r *Runner) SweepGifts(ctx context.Context, limit int) (*SweepResult, error) {
	candidates, err := r.db.Gifts().ListSweepableGifts(ctx, r.now(), limit)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, candidate := range candidates {
		id := candidate.ID
		err := r.run(ctx, "gift_sweep", func(tx relationaldb.TransactionContext, ev *emitter) error {
			now := r.now()
			g, err := tx.Gifts().GetGiftForUpdate(ctx, id)
			if err != nil {
				return mapGiftErr(err)
			}
			switch {
			case g.Status == gift.StatusPaid && !now.Before(g.ExpiresAt):
				if err := r.settleDeadGift(ctx, tx, g, gift.StatusExpired, now); err != nil {
					return err
				}
				ev.emit(notifyEvent(g.SenderID, "gift_expired", "Votre cadeau a expire", now))
				result.Expired++
			case g.Abandoned(now):
				if err := r.settleDeadGift(ctx, tx, g, gift.StatusFailed, now); err != nil {
					return err
				}
				result.Abandoned++
			}
			return nil
		})
		if err != nil {
			r.logger.Printf("gift sweep: gift %d: %v", id, err)
		}
	}
	return result, nil
}

// settleDeadGift moves a gift to a terminal failure state, restores the
// escrowed holding and, when the sender already paid, banks the
// non-refundable fees into the treasury.
func (r *Runner) settleDeadGift(ctx context.Context, tx relationaldb.TransactionContext,
	g *gift.Gift, terminal gift.Status, now time.Time) error {

	wasPaid := g.Status == gift.StatusPaid

	// Lock order: BOOM before holding, even though only the holding row
	// changes here.
	if _, err := tx.Booms().GetBoomForUpdate(ctx, g.BoomID); err != nil {
		return mapBoomErr(err)
	}

	holding, err := tx.Holdings().GetHoldingForUpdate(ctx, g.HoldingID)
	if err == nil && holding.InEscrow() {
		holding.Release()
		if err := tx.Holdings().UpdateHolding(ctx, holding); err != nil {
			return err
		}
	} else if err != nil && !errors.Is(err, relationaldb.ErrHoldingNotFound) {
		return err
	}

	if err := g.Transition(terminal, now); err != nil {
		return err
	}
	if err := tx.Gifts().UpdateGift(ctx, g); err != nil {
		return err
	}

	// Fees are never refunded; once paid they belong to the treasury.
	if wasPaid && g.FeeAmount.IsPositive() {
		if _, err := applyTreasury(ctx, tx, g.FeeAmount, ledger.KindTreasuryFee, now); err != nil {
			return err
		}
	}
	return nil
}

func mapGiftErr(err error) error {
	if errors.Is(err, relationaldb.ErrGiftNotFound) {
		return gift.ErrNotFound
	}
	return err
}
