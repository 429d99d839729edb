package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/boomsapp/boomsd/internal/core/fees"
	"github.com/boomsapp/boomsd/internal/core/inventory"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const userColumns = `id, phone, email, password_hash, full_name, status,
	suspended_until, banned_at, is_admin, tier, created_at`

// CreateUser inserts the user plus zero-amount balance rows. Both
// balances exist from registration onward, so pipelines never have to
// create them lazily.
func (r *repos) CreateUser(ctx context.Context, user *inventory.User) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO users (phone, email, password_hash, full_name, status, suspended_until, banned_at, is_admin, tier, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.Phone, user.Email, user.PasswordHash, user.FullName, string(user.Status),
		nullTime(user.SuspendedUntil), nullTime(user.BannedAt), boolInt(user.IsAdmin),
		string(user.Tier), user.CreatedAt)
	if err != nil {
		return 0, classifyExecError("create_user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("create_user", "failed to read inserted ID", err)
	}

	now := user.CreatedAt
	if _, err := ex.ExecContext(ctx,
		"INSERT INTO real_balances (user_id, available, locked, updated_at) VALUES (?, '0', '0', ?)",
		id, now); err != nil {
		return 0, classifyExecError("create_user", err)
	}
	if _, err := ex.ExecContext(ctx,
		"INSERT INTO virtual_balances (user_id, balance, updated_at) VALUES (?, '0', ?)",
		id, now); err != nil {
		return 0, classifyExecError("create_user", err)
	}

	user.ID = id
	return id, nil
}

func (r *repos) GetUser(ctx context.Context, id int64) (*inventory.User, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (r *repos) GetUserByPhone(ctx context.Context, phone string) (*inventory.User, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE phone = ?", phone))
}

func (r *repos) GetUserByEmail(ctx context.Context, email string) (*inventory.User, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	return scanUser(ex.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
}

func (r *repos) UpdateUserStatus(ctx context.Context, id int64, status inventory.Status, suspendedUntil *time.Time) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx,
		"UPDATE users SET status = ?, suspended_until = ? WHERE id = ?",
		string(status), nullTime(suspendedUntil), id)
	if err != nil {
		return classifyExecError("update_user_status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return relationaldb.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*inventory.User, error) {
	var (
		u            inventory.User
		status, tier string
		suspended    sql.NullTime
		banned       sql.NullTime
		isAdmin      int64
	)
	err := row.Scan(&u.ID, &u.Phone, &u.Email, &u.PasswordHash, &u.FullName, &status,
		&suspended, &banned, &isAdmin, &tier, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrUserNotFound
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_user", "failed to scan user row", err)
	}
	u.Status = inventory.Status(status)
	u.Tier = fees.Tier(tier)
	u.SuspendedUntil = timePtr(suspended)
	u.BannedAt = timePtr(banned)
	u.IsAdmin = isAdmin != 0
	return &u, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
