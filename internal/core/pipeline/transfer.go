package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/core/socialvalue"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// TransferInput describes a free share: the holding moves, no money does.
type TransferInput struct {
	SenderID   int64
	ReceiverID int64
	TokenID    string
	Message    string
}

// TransferResult is the committed outcome of a free transfer.
type TransferResult struct {
	BoomID       int64
	OldHoldingID int64
	NewHoldingID int64
	Social       socialvalue.Outcome
}

// Transfer runs the free-share pipeline. The receiver's new holding
// keeps the sender's purchase price; the share lands as an
// internal-share micro impact on the BOOM.
func (r *Runner) Transfer(ctx context.Context, in TransferInput) (*TransferResult, error) {
	if in.SenderID == in.ReceiverID {
		return nil, ErrSelfTransfer
	}

	var result *TransferResult
	err := r.run(ctx, "transfer", func(tx relationaldb.TransactionContext, ev *emitter) error {
		now := r.now()

		sender, err := loadActiveUser(ctx, tx, in.SenderID, now)
		if err != nil {
			return err
		}
		receiver, err := loadActiveUser(ctx, tx, in.ReceiverID, now)
		if err != nil {
			return err
		}

		boom, err := lockBoom(ctx, tx, 0, in.TokenID)
		if err != nil {
			return err
		}

		holding, err := findTransferableHolding(ctx, tx, sender.ID, boom.ID, now)
		if err != nil {
			return err
		}

		holding.Settle(receiver.ID, now)
		if err := tx.Holdings().UpdateHolding(ctx, holding); err != nil {
			return err
		}

		newHolding := &inventory.Holding{
			UserID:                receiver.ID,
			BoomID:                boom.ID,
			PurchasePrice:         holding.PurchasePrice,
			FeesPaid:              holding.FeesPaid,
			SocialValueAtPurchase: boom.MarketValue(),
			IsTransferable:        true,
			AcquiredAt:            now,
		}
		newID, err := tx.Holdings().CreateHolding(ctx, newHolding)
		if err != nil {
			return err
		}

		outcome, err := socialvalue.Apply(&boom.Social, socialvalue.ActionShareInternal,
			socialvalue.Metadata{Channel: "transfer"}, now)
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

		if _, err := tx.Interactions().CreateInteraction(ctx, &relationaldb.Interaction{
			UserID:    sender.ID,
			BoomID:    boom.ID,
			Action:    string(socialvalue.ActionShareInternal),
			Channel:   "transfer",
			Impact:    outcome.Impact,
			CreatedAt: now,
		}); err != nil {
			return err
		}

		ev.emit(socialEvent(boom.ID, boom.MarketValue(), now))
		ev.emit(notifyEvent(receiver.ID, "transfer",
			fmt.Sprintf("%s vous a partage %s", sender.FullName, boom.Name), now))
		ev.emit(notifyEvent(sender.ID, "transfer",
			fmt.Sprintf("Partage de %s confirme", boom.Name), now))

		result = &TransferResult{
			BoomID:       boom.ID,
			OldHoldingID: holding.ID,
			NewHoldingID: newID,
			Social:       outcome,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// findTransferableHolding locks the sender's oldest live, transferable
// holding of the BOOM. Holdings come back ordered by ascending ID.
func findTransferableHolding(ctx context.Context, tx relationaldb.TransactionContext,
	userID, boomID int64, now time.Time) (*inventory.Holding, error) {

	holdings, err := tx.Holdings().ListHoldingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var lastErr error = inventory.ErrHoldingNotOwned
	for _, h := range holdings {
		if h.BoomID != boomID || h.IsSold {
			continue
		}
		if err := h.CheckTransferable(now); err != nil {
			lastErr = err
			continue
		}
		// Take the row lock before mutating.
		return tx.Holdings().GetHoldingForUpdate(ctx, h.ID)
	}
	return nil, lastErr
}
