package repository

import (
	"granulemigration/internal/port/outbound"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLGranuleDestination is the relational destination of a migration.
type PostgreSQLGranuleDestination struct {
	*TransactionManager
	*PostgreSQLLookupRepository

	granules *PostgreSQLGranuleRepository
	files    *PostgreSQLFileRepository
}

var _ outbound.GranuleDestination = (*PostgreSQLGranuleDestination)(nil)

// NewPostgreSQLGranuleDestination creates a destination over pool.
func NewPostgreSQLGranuleDestination(pool *pgxpool.Pool) *PostgreSQLGranuleDestination {
	return &PostgreSQLGranuleDestination{
		TransactionManager:         NewTransactionManager(pool),
		PostgreSQLLookupRepository: NewPostgreSQLLookupRepository(pool),
		granules:                   NewPostgreSQLGranuleRepository(pool),
		files:                      NewPostgreSQLFileRepository(pool),
	}
}

// Granules implements outbound.GranuleDestination.
func (d *PostgreSQLGranuleDestination) Granules() outbound.GranuleRepository {
	return d.granules
}

// Files implements outbound.GranuleDestination.
func (d *PostgreSQLGranuleDestination) Files() outbound.FileRepository {
	return d.files
}
