package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager manages database transactions.
type TransactionManager struct {
	pool *pgxpool.Pool
}

// NewTransactionManager creates a new transaction manager.
func NewTransactionManager(pool *pgxpool.Pool) *TransactionManager {
	return &TransactionManager{
		pool: pool,
	}
}

// WithTransaction executes a function within a database transaction. A
// context already carrying a transaction reuses it.
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	if GetTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.pool.Begin(ctx)
	if err != nil {
		return WrapError(err, "begin transaction")
	}

	// Create a new context with the transaction
	txCtx := context.WithValue(ctx, txContextKey{}, tx)

	// Execute the function
	err = fn(txCtx)
	if err != nil {
		// Rollback on error
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil {
			return fmt.Errorf("failed to rollback transaction after error %w: %w", err, rollbackErr)
		}
		return err
	}

	// Commit the transaction
	if commitErr := tx.Commit(ctx); commitErr != nil {
		return WrapError(commitErr, "commit transaction")
	}

	return nil
}

// txContextKey is used as a key for storing transactions in context.
type txContextKey struct{}

// GetTx retrieves the transaction carried by ctx, if any.
func GetTx(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// QueryInterface represents either a connection pool or a transaction.
type QueryInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQueryInterface returns the appropriate query interface (tx or pool).
func GetQueryInterface(ctx context.Context, pool *pgxpool.Pool) QueryInterface {
	if tx := GetTx(ctx); tx != nil {
		return tx
	}
	return pool
}
