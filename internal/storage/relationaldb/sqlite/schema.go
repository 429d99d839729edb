package sqlite

import (
	"context"
	"database/sql"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// schemaVersion is bumped whenever the DDL below changes shape.
const schemaVersion = 1

// Monetary columns are stored as decimal TEXT, never floats. Append-only
// tables (wallet_transactions, admin_audit, interactions) rely on the
// monotonic INTEGER PRIMARY KEY for ordering.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		phone           TEXT NOT NULL UNIQUE,
		email           TEXT NOT NULL UNIQUE,
		password_hash   TEXT NOT NULL,
		full_name       TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'active'
			CHECK (status IN ('active','review','limited','suspended','banned')),
		suspended_until TIMESTAMP,
		banned_at       TIMESTAMP,
		is_admin        INTEGER NOT NULL DEFAULT 0,
		tier            TEXT NOT NULL DEFAULT 'bronze'
			CHECK (tier IN ('bronze','silver','gold','platinum')),
		created_at      TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS real_balances (
		user_id    INTEGER PRIMARY KEY REFERENCES users(id),
		available  TEXT NOT NULL DEFAULT '0' CHECK (CAST(available AS REAL) >= 0),
		locked     TEXT NOT NULL DEFAULT '0' CHECK (CAST(locked AS REAL) >= 0),
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS virtual_balances (
		user_id    INTEGER PRIMARY KEY REFERENCES users(id),
		balance    TEXT NOT NULL DEFAULT '0' CHECK (CAST(balance AS REAL) >= 0),
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS treasury (
		id                   INTEGER PRIMARY KEY CHECK (id = 1),
		balance              TEXT NOT NULL DEFAULT '0' CHECK (CAST(balance AS REAL) >= 0),
		total_fees_collected TEXT NOT NULL DEFAULT '0',
		total_transactions   INTEGER NOT NULL DEFAULT 0,
		last_transaction_at  TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS booms (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		token_id             TEXT NOT NULL UNIQUE,
		name                 TEXT NOT NULL,
		base_price           TEXT NOT NULL CHECK (CAST(base_price AS REAL) > 0),
		current_social_value TEXT NOT NULL DEFAULT '0',
		applied_micro_value  TEXT NOT NULL DEFAULT '0' CHECK (CAST(applied_micro_value AS REAL) >= 0),
		accumulator          TEXT NOT NULL DEFAULT '0',
		palier_threshold     TEXT NOT NULL,
		palier_level         INTEGER NOT NULL DEFAULT 0 CHECK (palier_level >= 0),
		treasury_pool        TEXT NOT NULL DEFAULT '0',
		redistribution_pool  TEXT NOT NULL DEFAULT '0',
		buy_count            INTEGER NOT NULL DEFAULT 0,
		sell_count           INTEGER NOT NULL DEFAULT 0,
		share_count          INTEGER NOT NULL DEFAULT 0,
		share_count_24h      INTEGER NOT NULL DEFAULT 0,
		interaction_count    INTEGER NOT NULL DEFAULT 0,
		active_event         TEXT NOT NULL DEFAULT '',
		event_expires_at     TIMESTAMP,
		owner_id             INTEGER REFERENCES users(id),
		max_editions         INTEGER NOT NULL DEFAULT 1 CHECK (max_editions >= 1),
		current_edition      INTEGER NOT NULL DEFAULT 0 CHECK (current_edition >= 0),
		available_editions   INTEGER NOT NULL DEFAULT 0 CHECK (available_editions >= 0),
		unique_holders       INTEGER NOT NULL DEFAULT 0,
		is_active            INTEGER NOT NULL DEFAULT 1,
		created_at           TIMESTAMP NOT NULL,
		updated_at           TIMESTAMP NOT NULL,
		last_interaction_at  TIMESTAMP,
		CHECK (current_edition <= max_editions)
	)`,

	`CREATE TABLE IF NOT EXISTS holdings (
		id                       INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id                  INTEGER NOT NULL REFERENCES users(id),
		boom_id                  INTEGER NOT NULL REFERENCES booms(id),
		purchase_price           TEXT NOT NULL DEFAULT '0',
		fees_paid                TEXT NOT NULL DEFAULT '0',
		social_value_at_purchase TEXT NOT NULL DEFAULT '0',
		is_transferable          INTEGER NOT NULL DEFAULT 1,
		is_sold                  INTEGER NOT NULL DEFAULT 0,
		receiver_id              INTEGER REFERENCES users(id),
		transferred_at           TIMESTAMP,
		delivered_at             TIMESTAMP,
		deleted_at               TIMESTAMP,
		acquired_at              TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_user ON holdings(user_id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_boom ON holdings(boom_id)`,

	`CREATE TABLE IF NOT EXISTS gifts (
		id                    INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id             INTEGER NOT NULL REFERENCES users(id),
		receiver_id           INTEGER NOT NULL REFERENCES users(id),
		holding_id            INTEGER NOT NULL,
		boom_id               INTEGER NOT NULL REFERENCES booms(id),
		message               TEXT NOT NULL DEFAULT '',
		gross_amount          TEXT NOT NULL DEFAULT '0',
		fee_amount            TEXT NOT NULL DEFAULT '0',
		net_amount            TEXT NOT NULL DEFAULT '0',
		transaction_reference TEXT NOT NULL UNIQUE,
		status                TEXT NOT NULL
			CHECK (status IN ('CREATED','PAID','DELIVERED','FAILED','EXPIRED','SENT','ACCEPTED','DECLINED')),
		flow                  TEXT NOT NULL DEFAULT 'new' CHECK (flow IN ('new','legacy')),
		wallet_transaction_ids TEXT NOT NULL DEFAULT '',
		created_at            TIMESTAMP NOT NULL,
		paid_at               TIMESTAMP,
		accepted_at           TIMESTAMP,
		delivered_at          TIMESTAMP,
		failed_at             TIMESTAMP,
		expires_at            TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gifts_sweep ON gifts(status, expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_gifts_receiver ON gifts(receiver_id)`,

	`CREATE TABLE IF NOT EXISTS wallet_transactions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id     INTEGER NOT NULL REFERENCES users(id),
		amount      TEXT NOT NULL CHECK (CAST(amount AS REAL) > 0),
		kind        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL DEFAULT 'completed'
			CHECK (status IN ('pending','completed','failed')),
		reference   TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_wallet_user ON wallet_transactions(user_id, id)`,

	`CREATE TABLE IF NOT EXISTS payment_transactions (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id             INTEGER NOT NULL REFERENCES users(id),
		provider            TEXT NOT NULL
			CHECK (provider IN ('wave','mtn_momo','orange_money','stripe')),
		kind                TEXT NOT NULL CHECK (kind IN ('deposit','withdrawal')),
		merchant_reference  TEXT NOT NULL,
		provider_reference  TEXT NOT NULL DEFAULT '',
		gross_amount        TEXT NOT NULL CHECK (CAST(gross_amount AS REAL) > 0),
		provider_fee        TEXT NOT NULL DEFAULT '0',
		platform_commission TEXT NOT NULL DEFAULT '0',
		net_amount          TEXT NOT NULL DEFAULT '0',
		status              TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING','PROCESSING','COMPLETED','FAILED','CANCELLED')),
		phone_number        TEXT NOT NULL DEFAULT '',
		failure_reason      TEXT NOT NULL DEFAULT '',
		created_at          TIMESTAMP NOT NULL,
		updated_at          TIMESTAMP NOT NULL,
		completed_at        TIMESTAMP,
		UNIQUE (provider, merchant_reference)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_pending ON payment_transactions(status, created_at)`,

	`CREATE TABLE IF NOT EXISTS interactions (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL REFERENCES users(id),
		boom_id    INTEGER NOT NULL REFERENCES booms(id),
		action     TEXT NOT NULL,
		channel    TEXT NOT NULL DEFAULT '',
		impact     TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_dedup ON interactions(user_id, boom_id, action, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_interactions_boom ON interactions(boom_id, action, created_at)`,

	`CREATE TABLE IF NOT EXISTS admin_audit (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL,
		action     TEXT NOT NULL,
		detail     TEXT NOT NULL DEFAULT '',
		amount     TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS platform_settings (
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		version    INTEGER NOT NULL,
		updated_by INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (key, version)
	)`,
}

// initSchema creates all tables and seeds the singleton rows.
func initSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return relationaldb.NewSchemaError("init_schema", "failed to apply schema statement", err)
		}
	}

	var version sql.NullInt64
	err := db.QueryRowContext(ctx, "SELECT version FROM schema_info LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows || !version.Valid:
		if _, err := db.ExecContext(ctx, "INSERT INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
			return relationaldb.NewSchemaError("init_schema", "failed to record schema version", err)
		}
	case err != nil:
		return relationaldb.NewSchemaError("init_schema", "failed to read schema version", err)
	case version.Int64 != schemaVersion:
		return relationaldb.ErrSchemaVersion
	}

	// Seed the treasury singleton.
	_, err = db.ExecContext(ctx,
		"INSERT INTO treasury (id, balance, total_fees_collected) VALUES (1, '0', '0') ON CONFLICT (id) DO NOTHING")
	if err != nil {
		return relationaldb.NewSchemaError("init_schema", "failed to seed treasury row", err)
	}
	return nil
}
