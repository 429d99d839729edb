// Package sqlite implements the relational storage contract on
// modernc.org/sqlite. One writer at a time; the row-lock semantics of
// the ForUpdate accessors are provided by immediate write transactions
// rather than per-row locks.
package sqlite

import (
	"context"
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/boomsapp/boomsd/internal/storage/relationaldb"
)

// Database implements relationaldb.RepositoryManager for SQLite.
type Database struct {
	config *relationaldb.Config

	mu sync.RWMutex
	db *sql.DB

	repos repos
}

// New creates an unopened Database from the config.
func New(config *relationaldb.Config) (*Database, error) {
	if err := config.Validate(); err != nil {
		return nil, relationaldb.NewConfigurationError("new_database", "invalid configuration", err)
	}
	return &Database{config: config}, nil
}

// Open connects and initializes the schema. Pragmas travel in the DSN.
func (d *Database) Open(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		return nil
	}

	dsn, err := d.config.BuildConnectionString()
	if err != nil {
		return relationaldb.NewConfigurationError("open", "failed to build connection string", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return relationaldb.NewConnectionError("open", "failed to open database", err)
	}

	db.SetMaxOpenConns(d.config.MaxOpenConns)
	db.SetMaxIdleConns(d.config.MaxIdleConns)
	db.SetConnMaxLifetime(d.config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(d.config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return relationaldb.NewConnectionError("open", "failed to ping database", err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return err
	}

	d.db = db
	d.repos = repos{ex: db}
	return nil
}

// Close shuts the connection pool down.
func (d *Database) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	d.repos = repos{}
	if err != nil {
		return relationaldb.NewConnectionError("close", "failed to close database", err)
	}
	return nil
}

// Ping verifies the connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return relationaldb.ErrDatabaseClosed
	}
	if err := d.db.PingContext(ctx); err != nil {
		return relationaldb.NewConnectionError("ping", "database unreachable", err)
	}
	return nil
}

// Begin starts a write transaction. SQLite serializes writers, so every
// transaction opened here holds the write lock until commit or rollback.
func (d *Database) Begin(ctx context.Context) (relationaldb.TransactionContext, error) {
	d.mu.RLock()
	db := d.db
	d.mu.RUnlock()

	if db == nil {
		return nil, relationaldb.ErrDatabaseClosed
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyExecError("begin", err)
	}
	return &txContext{tx: tx, repos: repos{ex: tx}}, nil
}

// WithTransaction runs fn inside a transaction, committing on nil and
// rolling back on error.
func (d *Database) WithTransaction(ctx context.Context, fn func(relationaldb.TransactionContext) error) error {
	txc, err := d.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(txc); err != nil {
		if rbErr := txc.Rollback(ctx); rbErr != nil {
			return relationaldb.NewTransactionError("with_transaction",
				"rollback failed after error", rbErr)
		}
		return err
	}
	return txc.Commit(ctx)
}

// Repository accessors outside a transaction.

func (d *Database) Users() relationaldb.UserRepository               { return &d.repos }
func (d *Database) Balances() relationaldb.BalanceRepository         { return &d.repos }
func (d *Database) Treasury() relationaldb.TreasuryRepository        { return &d.repos }
func (d *Database) Booms() relationaldb.BoomRepository               { return &d.repos }
func (d *Database) Holdings() relationaldb.HoldingRepository         { return &d.repos }
func (d *Database) Gifts() relationaldb.GiftRepository               { return &d.repos }
func (d *Database) Wallet() relationaldb.WalletRepository            { return &d.repos }
func (d *Database) Payments() relationaldb.PaymentRepository         { return &d.repos }
func (d *Database) Interactions() relationaldb.InteractionRepository { return &d.repos }
func (d *Database) Admin() relationaldb.AdminRepository              { return &d.repos }

// txContext implements relationaldb.TransactionContext.
type txContext struct {
	tx    *sql.Tx
	done  bool
	repos repos
}

func (t *txContext) Commit(ctx context.Context) error {
	if t.done {
		return relationaldb.ErrTransactionClosed
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return classifyExecError("commit", err)
	}
	return nil
}

func (t *txContext) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return relationaldb.NewTransactionError("rollback", "rollback failed", err)
	}
	return nil
}

func (t *txContext) Users() relationaldb.UserRepository               { return &t.repos }
func (t *txContext) Balances() relationaldb.BalanceRepository         { return &t.repos }
func (t *txContext) Treasury() relationaldb.TreasuryRepository        { return &t.repos }
func (t *txContext) Booms() relationaldb.BoomRepository               { return &t.repos }
func (t *txContext) Holdings() relationaldb.HoldingRepository         { return &t.repos }
func (t *txContext) Gifts() relationaldb.GiftRepository               { return &t.repos }
func (t *txContext) Wallet() relationaldb.WalletRepository            { return &t.repos }
func (t *txContext) Payments() relationaldb.PaymentRepository         { return &t.repos }
func (t *txContext) Interactions() relationaldb.InteractionRepository { return &t.repos }
func (t *txContext) Admin() relationaldb.AdminRepository              { return &t.repos }

// repos carries the executor all repository methods run against.
type repos struct {
	ex executor
}

func (r *repos) executor() (executor, error) {
	if r.ex == nil {
		return nil, relationaldb.ErrDatabaseClosed
	}
	return r.ex, nil
}
