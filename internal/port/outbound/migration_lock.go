package outbound

import "context"

// MigrationLock guarantees that only one migration runs against a destination.
type MigrationLock interface {
	// TryAcquire returns false without blocking when another holder exists.
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}
