package repository

import (
	"context"
	"granulemigration/internal/domain/entity"

	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertFileQuery = `
	INSERT INTO files (
		granule_cumulus_id, bucket, key, file_size, checksum_value, checksum_type,
		file_name, source, path, type, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	ON CONFLICT (bucket, key) DO UPDATE SET
		granule_cumulus_id = EXCLUDED.granule_cumulus_id,
		file_size = EXCLUDED.file_size,
		checksum_value = EXCLUDED.checksum_value,
		checksum_type = EXCLUDED.checksum_type,
		file_name = EXCLUDED.file_name,
		source = EXCLUDED.source,
		path = EXCLUDED.path,
		type = EXCLUDED.type,
		updated_at = NOW()
	RETURNING cumulus_id`

// PostgreSQLFileRepository implements outbound.FileRepository.
type PostgreSQLFileRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLFileRepository creates a new file repository.
func NewPostgreSQLFileRepository(pool *pgxpool.Pool) *PostgreSQLFileRepository {
	return &PostgreSQLFileRepository{pool: pool}
}

// Upsert inserts the file or overwrites the row with the same bucket and key.
func (r *PostgreSQLFileRepository) Upsert(ctx context.Context, f *entity.File) (entity.UpsertResult, error) {
	var cumulusID int64
	err := GetQueryInterface(ctx, r.pool).QueryRow(ctx, upsertFileQuery,
		f.GranuleCumulusID, f.Bucket, f.Key, f.FileSize, f.ChecksumValue, f.ChecksumType,
		f.FileName, f.Source, f.Path, f.Type,
	).Scan(&cumulusID)
	if err != nil {
		return entity.UpsertResult{}, WrapError(err, "upsert file")
	}
	return entity.UpsertResult{CumulusID: cumulusID, RowsAffected: 1}, nil
}
