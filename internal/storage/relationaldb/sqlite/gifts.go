package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/boomsapp/boomsd/internal/core/gift"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const giftColumns = `id, sender_id, receiver_id, holding_id, boom_id, message,
	gross_amount, fee_amount, net_amount, transaction_reference, status, flow,
	wallet_transaction_ids, created_at, paid_at, accepted_at, delivered_at, failed_at, expires_at`

func (r *repos) CreateGift(ctx context.Context, g *gift.Gift) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO gifts (sender_id, receiver_id, holding_id, boom_id, message,
			gross_amount, fee_amount, net_amount, transaction_reference, status, flow,
			wallet_transaction_ids, created_at, paid_at, accepted_at, delivered_at, failed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.SenderID, g.ReceiverID, g.HoldingID, g.BoomID, g.Message,
		g.GrossAmount.String(), g.FeeAmount.String(), g.NetAmount.String(),
		g.TransactionReference, string(g.Status), string(g.Flow),
		encodeIDList(g.WalletTransactionIDs), g.CreatedAt,
		nullTime(g.PaidAt), nullTime(g.AcceptedAt), nullTime(g.DeliveredAt), nullTime(g.FailedAt),
		g.ExpiresAt)
	if err != nil {
		return 0, classifyExecError("create_gift", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_gift", "failed to read inserted ID", err)
	}
	g.ID = id
	return id, nil
}

func (r *repos) GetGift(ctx context.Context, id int64) (*gift.Gift, error) {
	return r.getGiftWhere(ctx, "id = ?", id)
}

func (r *repos) GetGiftForUpdate(ctx context.Context, id int64) (*gift.Gift, error) {
	return r.getGiftWhere(ctx, "id = ?", id)
}

func (r *repos) GetGiftByReference(ctx context.Context, reference string) (*gift.Gift, error) {
	return r.getGiftWhere(ctx, "transaction_reference = ?", reference)
}

func (r *repos) getGiftWhere(ctx context.Context, where string, arg interface{}) (*gift.Gift, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx, "SELECT "+giftColumns+" FROM gifts WHERE "+where, arg)
	g, err := scanGift(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrGiftNotFound
	}
	return g, err
}

func (r *repos) UpdateGift(ctx context.Context, g *gift.Gift) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE gifts SET status = ?, wallet_transaction_ids = ?,
			paid_at = ?, accepted_at = ?, delivered_at = ?, failed_at = ?
		WHERE id = ?`,
		string(g.Status), encodeIDList(g.WalletTransactionIDs),
		nullTime(g.PaidAt), nullTime(g.AcceptedAt), nullTime(g.DeliveredAt), nullTime(g.FailedAt),
		g.ID)
	if err != nil {
		return classifyExecError("update_gift", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrGiftNotFound
	}
	return nil
}

// ListSweepableGifts returns gifts the sweeper should fail or expire:
// PAID past expiry and CREATED past the abandonment window.
func (r *repos) ListSweepableGifts(ctx context.Context, now time.Time, limit int) ([]*gift.Gift, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-gift.AbandonedAfter)
	rows, err := ex.QueryContext(ctx, `
		SELECT `+giftColumns+` FROM gifts
		WHERE (status = 'PAID' AND expires_at <= ?)
		   OR (status = 'CREATED' AND created_at <= ?)
		ORDER BY id LIMIT ?`,
		now, cutoff, limit)
	if err != nil {
		return nil, classifyExecError("list_sweepable_gifts", err)
	}
	defer rows.Close()
	return collectGifts(rows, "list_sweepable_gifts")
}

func (r *repos) ListGiftsForUser(ctx context.Context, userID int64, limit, offset int) ([]*gift.Gift, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
		SELECT `+giftColumns+` FROM gifts
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY id DESC LIMIT ? OFFSET ?`,
		userID, userID, limit, offset)
	if err != nil {
		return nil, classifyExecError("list_gifts_for_user", err)
	}
	defer rows.Close()
	return collectGifts(rows, "list_gifts_for_user")
}

func collectGifts(rows *sql.Rows, operation string) ([]*gift.Gift, error) {
	var gifts []*gift.Gift
	for rows.Next() {
		g, err := scanGift(rows.Scan)
		if err != nil {
			return nil, err
		}
		gifts = append(gifts, g)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError(operation, "row iteration failed", err)
	}
	return gifts, nil
}

func scanGift(scan func(...interface{}) error) (*gift.Gift, error) {
	var (
		g                     gift.Gift
		gross, fee, net       string
		status, flow, idList  string
		paidAt, acceptedAt    sql.NullTime
		deliveredAt, failedAt sql.NullTime
	)
	err := scan(&g.ID, &g.SenderID, &g.ReceiverID, &g.HoldingID, &g.BoomID, &g.Message,
		&gross, &fee, &net, &g.TransactionReference, &status, &flow,
		&idList, &g.CreatedAt, &paidAt, &acceptedAt, &deliveredAt, &failedAt, &g.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_gift", "failed to scan gift row", err)
	}

	if g.GrossAmount, err = parseAmount("scan_gift", gross); err != nil {
		return nil, err
	}
	if g.FeeAmount, err = parseAmount("scan_gift", fee); err != nil {
		return nil, err
	}
	if g.NetAmount, err = parseAmount("scan_gift", net); err != nil {
		return nil, err
	}
	g.Status = gift.Status(status)
	g.Flow = gift.Flow(flow)
	g.WalletTransactionIDs = decodeIDList(idList)
	g.PaidAt = timePtr(paidAt)
	g.AcceptedAt = timePtr(acceptedAt)
	g.DeliveredAt = timePtr(deliveredAt)
	g.FailedAt = timePtr(failedAt)
	return &g, nil
}
