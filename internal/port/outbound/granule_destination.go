package outbound

import (
	"context"
	"granulemigration/internal/domain/entity"
)

// TransactionManager runs a function inside a destination transaction. The
// transaction travels in the context passed to fn; returning an error from fn
// rolls it back.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// CollectionLookup resolves a collection natural key to its cumulus id.
type CollectionLookup interface {
	// CollectionCumulusID returns domain.ErrRecordNotFound when absent.
	CollectionCumulusID(ctx context.Context, name, version string) (int64, error)
}

// ExecutionLookup resolves an execution URL (its ARN) to its cumulus id.
type ExecutionLookup interface {
	// ExecutionCumulusID returns domain.ErrRecordNotFound when absent.
	ExecutionCumulusID(ctx context.Context, url string) (int64, error)
}

// ProviderLookup resolves a provider name to its cumulus id.
type ProviderLookup interface {
	// ProviderCumulusID returns domain.ErrRecordNotFound when absent.
	ProviderCumulusID(ctx context.Context, name string) (int64, error)
}

// PDRLookup resolves a PDR name to its cumulus id.
type PDRLookup interface {
	// PDRCumulusID returns domain.ErrRecordNotFound when absent.
	PDRCumulusID(ctx context.Context, name string) (int64, error)
}

// GranuleRepository persists destination granule rows.
type GranuleRepository interface {
	// Get returns the granule or nil when it does not exist.
	Get(ctx context.Context, granuleID string, collectionCumulusID int64) (*entity.Granule, error)

	// Upsert inserts the granule or updates it when the stored row is strictly
	// older. A guarded no-op reports zero rows affected.
	Upsert(ctx context.Context, granule *entity.Granule) (entity.UpsertResult, error)

	// UpsertExecutionLink records the granule to execution association.
	UpsertExecutionLink(ctx context.Context, granuleCumulusID, executionCumulusID int64) error
}

// FileRepository persists destination file rows, keyed by bucket and key.
type FileRepository interface {
	Upsert(ctx context.Context, file *entity.File) (entity.UpsertResult, error)
}

// GranuleDestination is the full write side of the relational store used by
// the migrator. Every method other than WithTransaction joins the transaction
// carried in ctx when there is one.
type GranuleDestination interface {
	TransactionManager
	CollectionLookup
	ExecutionLookup
	ProviderLookup
	PDRLookup
	Granules() GranuleRepository
	Files() FileRepository
}
