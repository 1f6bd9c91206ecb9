package repository

import (
	"context"
	"errors"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/port/outbound"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryMigrationLock is a session-level Postgres advisory lock. The lock
// lives on one pooled connection, held from TryAcquire until Release.
type AdvisoryMigrationLock struct {
	pool *pgxpool.Pool
	key  int64

	mu   sync.Mutex
	conn *pgxpool.Conn
}

var _ outbound.MigrationLock = (*AdvisoryMigrationLock)(nil)

// NewAdvisoryMigrationLock creates a lock on the given advisory key.
func NewAdvisoryMigrationLock(pool *pgxpool.Pool, key int64) *AdvisoryMigrationLock {
	return &AdvisoryMigrationLock{pool: pool, key: key}
}

// TryAcquire takes the lock without waiting. It reports false when another
// session holds it.
func (l *AdvisoryMigrationLock) TryAcquire(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		return true, nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, WrapError(err, "acquire lock connection")
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Release()
		return false, WrapError(err, "try advisory lock")
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	l.conn = conn
	slogger.Debug(ctx, "Migration lock acquired", slogger.Field("lock_key", l.key))
	return true, nil
}

// Release frees the lock and returns its connection to the pool.
func (l *AdvisoryMigrationLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return errors.New("migration lock is not held")
	}
	conn := l.conn
	l.conn = nil
	defer conn.Release()

	var released bool
	if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&released); err != nil {
		return WrapError(err, "advisory unlock")
	}
	if !released {
		return errors.New("migration lock was not held by this session")
	}
	return nil
}
