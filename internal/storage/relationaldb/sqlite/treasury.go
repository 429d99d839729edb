package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

func (r *repos) GetTreasury(ctx context.Context) (*ledger.Treasury, error) {
	return r.getTreasury(ctx)
}

func (r *repos) GetTreasuryForUpdate(ctx context.Context) (*ledger.Treasury, error) {
	return r.getTreasury(ctx)
}

func (r *repos) getTreasury(ctx context.Context) (*ledger.Treasury, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}

	var (
		t             ledger.Treasury
		balance, fees string
		lastTxAt      sql.NullTime
	)
	row := ex.QueryRowContext(ctx,
		"SELECT balance, total_fees_collected, total_transactions, last_transaction_at FROM treasury WHERE id = 1")
	err = row.Scan(&balance, &fees, &t.TotalTransactions, &lastTxAt)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrTreasuryNotFound
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_treasury", "failed to scan treasury row", err)
	}
	if t.Balance, err = parseAmount("get_treasury", balance); err != nil {
		return nil, err
	}
	if t.TotalFeesCollected, err = parseAmount("get_treasury", fees); err != nil {
		return nil, err
	}
	if lastTxAt.Valid {
		t.LastTransactionAt = lastTxAt.Time
	}
	return &t, nil
}

func (r *repos) UpdateTreasury(ctx context.Context, treasury *ledger.Treasury) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE treasury SET balance = ?, total_fees_collected = ?, total_transactions = ?, last_transaction_at = ?
		WHERE id = 1`,
		treasury.Balance.String(), treasury.TotalFeesCollected.String(),
		treasury.TotalTransactions, treasury.LastTransactionAt)
	if err != nil {
		return classifyExecError("update_treasury", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrTreasuryNotFound
	}
	return nil
}
