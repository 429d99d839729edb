package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/core/ledger"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

const entryColumns = "id, user_id, amount, kind, description, status, reference, created_at"

// AppendEntry writes one append-only transaction log row. Entries are
// never updated or deleted.
func (r *repos) AppendEntry(ctx context.Context, entry *ledger.Entry) (int64, error) {
	ex, err := r.executor()
	if err != nil {
		return 0, err
	}

	res, err := ex.ExecContext(ctx, `
		INSERT INTO wallet_transactions (user_id, amount, kind, description, status, reference, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Amount.String(), string(entry.Kind), entry.Description,
		entry.Status, entry.Reference, entry.CreatedAt)
	if err != nil {
		return 0, classifyExecError("append_entry", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, relationaldb.NewQueryError("append_entry", "failed to read inserted ID", err)
	}
	entry.ID = id
	return id, nil
}

func (r *repos) GetEntry(ctx context.Context, id int64) (*ledger.Entry, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	row := ex.QueryRowContext(ctx,
		"SELECT "+entryColumns+" FROM wallet_transactions WHERE id = ?", id)
	e, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, relationaldb.NewDataError("get_entry", "transaction log entry not found", nil)
	}
	return e, err
}

func (r *repos) ListEntriesByUser(ctx context.Context, userID int64, limit, offset int) ([]*ledger.Entry, error) {
	ex, err := r.executor()
	if err != nil {
		return nil, err
	}
	rows, err := ex.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM wallet_transactions
		WHERE user_id = ? ORDER BY id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, classifyExecError("list_entries_by_user", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, relationaldb.NewQueryError("list_entries_by_user", "row iteration failed", err)
	}
	return entries, nil
}

func scanEntry(scan func(...interface{}) error) (*ledger.Entry, error) {
	var (
		e      ledger.Entry
		amount string
		kind   string
	)
	err := scan(&e.ID, &e.UserID, &amount, &kind, &e.Description, &e.Status, &e.Reference, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, relationaldb.NewQueryError("scan_entry", "failed to scan transaction log row", err)
	}
	if e.Amount, err = parseAmount("scan_entry", amount); err != nil {
		return nil, err
	}
	e.Kind = ledger.Kind(kind)
	return &e, nil
}
