package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

func (r *repos) AppendAudit(ctx context.Context, entry *relationaldb.AdminAuditEntry) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO admin_audit (user_id, action, detail, amount, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Action, entry.Detail, entry.Amount.String(), entry.CreatedAt)
	if err != nil {
		return 0, classifyExecError("append_audit", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("append_audit", "failed to read inserted ID", err)
	}
	entry.ID = id
	return id, nil
}

func (r *repos) ListAudit(ctx context.Context, limit, offset int) ([]*relationaldb.AdminAuditEntry, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
		SELECT id, user_id, action, detail, amount, created_at FROM admin_audit
		ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, classifyExecError("list_audit", err)
	}
	defer rows.Close()

	var entries []*relationaldb.AdminAuditEntry
	for rows.Next() {
		var (
			e      relationaldb.AdminAuditEntry
			amount string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Detail, &amount, &e.CreatedAt); err != nil {
			return nil, relationaldb.NewQueryError("list_audit", "failed to scan audit row", err)
		}
		if e.Amount, err = parseAmount("list_audit", amount); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_audit", "row iteration failed", err)
	}
	return entries, nil
}

// GetSetting returns the highest version of a key.
func (r *repos) GetSetting(ctx context.Context, key string) (*relationaldb.PlatformSetting, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}

	var s relationaldb.PlatformSetting
	err = ex.QueryRowContext(ctx, `
		SELECT key, value, version, updated_by, updated_at FROM platform_settings
		WHERE key = ? ORDER BY version DESC LIMIT 1`, key).
		Scan(&s.Key, &s.Value, &s.Version, &s.UpdatedBy, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, relationaldb.ErrSettingNotFound
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("get_setting", "failed to scan setting row", err)
	}
	return &s, nil
}

// PutSetting inserts the next version of a key. Old versions stay for
// audit.
func (r *repos) PutSetting(ctx context.Context, setting *relationaldb.PlatformSetting) error {
	ex, err := r.executor()
	if err != nil {
		return err
	}

	var maxVersion sql.NullInt64
	err = ex.QueryRowContext(ctx,
		"SELECT MAX(version) FROM platform_settings WHERE key = ?", setting.Key).Scan(&maxVersion)
	if err != nil {
		return relationaldb.NewQueryError("put_setting", "failed to read current version", err)
	}
	setting.Version = maxVersion.Int64 + 1

	_, err = ex.ExecContext(ctx, `
		INSERT INTO platform_settings (key, value, version, updated_by, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		setting.Key, setting.Value, setting.Version, setting.UpdatedBy, setting.UpdatedAt)
	if err != nil {
		return classifyExecError("put_setting", err)
	}
	return nil
}
