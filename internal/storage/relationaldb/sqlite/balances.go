package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

func (r *repos) GetRealBalance(ctx context.Context, userID int64) (*ledger.RealBalance, error) {
	return r.getRealBalance(ctx, userID)
}

// GetRealBalanceForUpdate is the same read under SQLite; the enclosing
// write transaction already excludes concurrent writers.
func (r *repos) GetRealBalanceForUpdate(ctx context.Context, userID int64) (*ledger.RealBalance, error) {
	return r.getRealBalance(ctx, userID)
}

func (r *repos) getRealBalance(ctx context.Context, userID int64) (*ledger.RealBalance, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}

	var (
		b                 ledger.RealBalance
		available, locked string
	)
	row := ex.QueryRowContext(ctx,
		"SELECT user_id, available, locked, updated_at FROM real_balances WHERE user_id = ?", userID)
	err = row.Scan(&b.UserID, &available, &locked, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrBalanceNotFound
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_real_balance", "failed to scan balance row", err)
	}
	if b.Available, err = parseAmount("get_real_balance", available); err != nil {
		return nil, err
	}
	if b.Locked, err = parseAmount("get_real_balance", locked); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repos) UpdateRealBalance(ctx context.Context, balance *ledger.RealBalance) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx,
		"UPDATE real_balances SET available = ?, locked = ?, updated_at = ? WHERE user_id = ?",
		balance.Available.String(), balance.Locked.String(), balance.UpdatedAt, balance.UserID)
	if err != nil {
		return classifyExecError("update_real_balance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrBalanceNotFound
	}
	return nil
}

func (r *repos) GetVirtualBalance(ctx context.Context, userID int64) (*ledger.VirtualBalance, error) {
	return r.getVirtualBalance(ctx, userID)
}

func (r *repos) GetVirtualBalanceForUpdate(ctx context.Context, userID int64) (*ledger.VirtualBalance, error) {
	return r.getVirtualBalance(ctx, userID)
}

func (r *repos) getVirtualBalance(ctx context.Context, userID int64) (*ledger.VirtualBalance, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}

	var (
		v       ledger.VirtualBalance
		balance string
	)
	row := ex.QueryRowContext(ctx,
		"SELECT user_id, balance, updated_at FROM virtual_balances WHERE user_id = ?", userID)
	err = row.Scan(&v.UserID, &balance, &v.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrBalanceNotFound
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_virtual_balance", "failed to scan balance row", err)
	}
	if v.Balance, err = parseAmount("get_virtual_balance", balance); err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *repos) UpdateVirtualBalance(ctx context.Context, balance *ledger.VirtualBalance) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx,
		"UPDATE virtual_balances SET balance = ?, updated_at = ? WHERE user_id = ?",
		balance.Balance.String(), balance.UpdatedAt, balance.UserID)
	if err != nil {
		return classifyExecError("update_virtual_balance", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrBalanceNotFound
	}
	return nil
}
