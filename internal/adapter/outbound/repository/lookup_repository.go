package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	collectionCumulusIDQuery = `SELECT cumulus_id FROM collections WHERE name = $1 AND version = $2`
	executionCumulusIDQuery  = `SELECT cumulus_id FROM executions WHERE url = $1`
	providerCumulusIDQuery   = `SELECT cumulus_id FROM providers WHERE name = $1`
	pdrCumulusIDQuery        = `SELECT cumulus_id FROM pdrs WHERE name = $1`
)

// PostgreSQLLookupRepository resolves natural keys of the tables a granule
// references to their cumulus ids.
type PostgreSQLLookupRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLLookupRepository creates a new lookup repository.
func NewPostgreSQLLookupRepository(pool *pgxpool.Pool) *PostgreSQLLookupRepository {
	return &PostgreSQLLookupRepository{pool: pool}
}

// CollectionCumulusID returns the cumulus id of a collection.
func (r *PostgreSQLLookupRepository) CollectionCumulusID(ctx context.Context, name, version string) (int64, error) {
	return r.cumulusID(ctx, "find collection", collectionCumulusIDQuery, name, version)
}

// ExecutionCumulusID returns the cumulus id of an execution by its url.
func (r *PostgreSQLLookupRepository) ExecutionCumulusID(ctx context.Context, url string) (int64, error) {
	return r.cumulusID(ctx, "find execution", executionCumulusIDQuery, url)
}

// ProviderCumulusID returns the cumulus id of a provider.
func (r *PostgreSQLLookupRepository) ProviderCumulusID(ctx context.Context, name string) (int64, error) {
	return r.cumulusID(ctx, "find provider", providerCumulusIDQuery, name)
}

// PDRCumulusID returns the cumulus id of a PDR.
func (r *PostgreSQLLookupRepository) PDRCumulusID(ctx context.Context, name string) (int64, error) {
	return r.cumulusID(ctx, "find pdr", pdrCumulusIDQuery, name)
}

func (r *PostgreSQLLookupRepository) cumulusID(ctx context.Context, operation, query string, args ...any) (int64, error) {
	var id int64
	if err := GetQueryInterface(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, WrapError(err, operation)
	}
	return id, nil
}
