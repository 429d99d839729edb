package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/boomsapp/boomsd/internal/core/money"
	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// executor abstracts *sql.DB and *sql.Tx so every repository method runs
// both standalone and inside a transaction.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// parseAmount converts a stored decimal string back into an Amount.
func parseAmount(operation, s string) (money.Amount, error) {
	if s == "" {
		return money.Zero, nil
	}
	a, err := money.NewFromString(s)
	if err != nil {
		return money.Zero, relationaldb.NewDataError(operation, "corrupt monetary column", err)
	}
	return a, nil
}

// timePtr converts a nullable column into *time.Time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// nullTime converts *time.Time into a nullable column value.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullZeroTime maps the zero time to NULL.
func nullZeroTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

// nullInt converts *int64 into a nullable column value.
func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// intPtr converts a nullable column into *int64.
func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// encodeIDList serializes wallet transaction IDs into a comma-joined
// column value.
func encodeIDList(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// decodeIDList parses a comma-joined ID column back into a slice.
func decodeIDList(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// classifyExecError maps driver errors to the storage taxonomy. SQLite
// reports write contention as "database is locked" / "database is busy";
// those become retryable contention errors.
func classifyExecError(operation string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy"):
		return relationaldb.NewContentionError(operation, err)
	case strings.Contains(msg, "unique"):
		return relationaldb.NewConstraintError(operation, "unique constraint violated", err).
			WithCode("DUPLICATE_ENTRY")
	case strings.Contains(msg, "check constraint"):
		return relationaldb.NewConstraintError(operation, "check constraint violated", err).
			WithCode("CHECK_VIOLATION")
	case strings.Contains(msg, "foreign key"):
		return relationaldb.NewConstraintError(operation, "foreign key constraint violated", err).
			WithCode("FK_VIOLATION")
	default:
		return relationaldb.NewQueryError(operation, "query failed", err)
	}
}
