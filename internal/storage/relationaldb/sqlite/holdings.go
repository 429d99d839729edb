package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const holdingColumns = `id, user_id, boom_id, purchase_price, fees_paid, social_value_at_purchase,
	is_transferable, is_sold, receiver_id, transferred_at, delivered_at, deleted_at, acquired_at`

func (r *repos) CreateHolding(ctx context.Context, holding *inventory.Holding) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO holdings (user_id, boom_id, purchase_price, fees_paid, social_value_at_purchase,
			is_transferable, is_sold, receiver_id, transferred_at, delivered_at, deleted_at, acquired_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		holding.UserID, holding.BoomID, holding.PurchasePrice.String(), holding.FeesPaid.String(),
		holding.SocialValueAtPurchase.String(), boolInt(holding.IsTransferable), boolInt(holding.IsSold),
		nullInt(holding.ReceiverID), nullTime(holding.TransferredAt), nullTime(holding.DeliveredAt),
		nullTime(holding.DeletedAt), holding.AcquiredAt)
	if err != nil {
		return 0, classifyExecError("create_holding", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_holding", "failed to read inserted ID", err)
	}
	holding.ID = id
	return id, nil
}

func (r *repos) GetHolding(ctx context.Context, id int64) (*inventory.Holding, error) {
	return r.getHolding(ctx, id)
}

func (r *repos) GetHoldingForUpdate(ctx context.Context, id int64) (*inventory.Holding, error) {
	return r.getHolding(ctx, id)
}

func (r *repos) getHolding(ctx context.Context, id int64) (*inventory.Holding, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx, "SELECT "+holdingColumns+" FROM holdings WHERE id = ?", id)
	h, err := scanHolding(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrHoldingNotFound
	}
	return h, err
}

func (r *repos) UpdateHolding(ctx context.Context, holding *inventory.Holding) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE holdings SET user_id = ?, is_transferable = ?, is_sold = ?, receiver_id = ?,
			transferred_at = ?, delivered_at = ?, deleted_at = ?
		WHERE id = ?`,
		holding.UserID, boolInt(holding.IsTransferable), boolInt(holding.IsSold),
		nullInt(holding.ReceiverID), nullTime(holding.TransferredAt), nullTime(holding.DeliveredAt),
		nullTime(holding.DeletedAt), holding.ID)
	if err != nil {
		return classifyExecError("update_holding", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrHoldingNotFound
	}
	return nil
}

func (r *repos) DeleteHolding(ctx context.Context, id int64) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, "DELETE FROM holdings WHERE id = ?", id)
	if err != nil {
		return classifyExecError("delete_holding", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrHoldingNotFound
	}
	return nil
}

func (r *repos) ListHoldingsByUser(ctx context.Context, userID int64) ([]*inventory.Holding, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx,
		"SELECT "+holdingColumns+" FROM holdings WHERE user_id = ? AND deleted_at IS NULL ORDER BY id", userID)
	if err != nil {
		return nil, classifyExecError("list_holdings_by_user", err)
	}
	defer rows.Close()

	var holdings []*inventory.Holding
	for rows.Next() {
		h, err := scanHolding(rows.Scan)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_holdings_by_user", "row iteration failed", err)
	}
	return holdings, nil
}

func (r *repos) CountHoldersOfBoom(ctx context.Context, boomID int64) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}
	var count int64
	err = ex.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT user_id) FROM holdings WHERE boom_id = ? AND is_sold = 0 AND deleted_at IS NULL",
		boomID).Scan(&count)
	if err != nil {
		return 0, relationaldb.NewQueryError("count_holders_of_boom", "failed to count holders", err)
	}
	return count, nil
}

func scanHolding(scan func(...interface{}) error) (*inventory.Holding, error) {
	var (
		h                                  inventory.Holding
		purchasePrice, feesPaid, socialVal string
		isTransferable, isSold             int64
		receiverID                         sql.NullInt64
		transferredAt, deliveredAt         sql.NullTime
		deletedAt                          sql.NullTime
	)
	err := scan(&h.ID, &h.UserID, &h.BoomID, &purchasePrice, &feesPaid, &socialVal,
		&isTransferable, &isSold, &receiverID, &transferredAt, &deliveredAt, &deletedAt, &h.AcquiredAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_holding", "failed to scan holding row", err)
	}

	if h.PurchasePrice, err = parseAmount("scan_holding", purchasePrice); err != nil {
		return nil, err
	}
	if h.FeesPaid, err = parseAmount("scan_holding", feesPaid); err != nil {
		return nil, err
	}
	if h.SocialValueAtPurchase, err = parseAmount("scan_holding", socialVal); err != nil {
		return nil, err
	}
	h.IsTransferable = isTransferable != 0
	h.IsSold = isSold != 0
	h.ReceiverID = intPtr(receiverID)
	h.TransferredAt = timePtr(transferredAt)
	h.DeliveredAt = timePtr(deliveredAt)
	h.DeletedAt = timePtr(deletedAt)
	return &h, nil
}
