package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRepositories are repositories bound to a single transaction.
type TxRepositories struct {
	Products  ProductRepository
	Movements MovementRepository
}

// TxRunner runs a function inside a database transaction, committing when it returns nil
// and rolling back otherwise.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos TxRepositories) error) error
}

type txRunner struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewTxRunner creates a TxRunner. A positive lockTimeout bounds how long statements in the
// transaction wait for row locks.
func NewTxRunner(db *sql.DB, lockTimeout time.Duration) TxRunner {
	return &txRunner{db: db, lockTimeout: lockTimeout}
}

func (r *txRunner) RunInTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.lockTimeout > 0 {
		// SET does not accept bind parameters; the value is an integer we control.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	repos := TxRepositories{
		Products:  NewProductRepository(tx),
		Movements: NewMovementRepository(tx),
	}
	if err := fn(repos); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
