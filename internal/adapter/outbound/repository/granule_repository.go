package repository

import (
	"context"
	"errors"
	"granulemigration/internal/domain/entity"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const selectGranuleQuery = `
	SELECT cumulus_id, granule_id, status, collection_cumulus_id, provider_cumulus_id, pdr_cumulus_id,
		   published, cmr_link, created_at, updated_at
	FROM granules
	WHERE granule_id = $1 AND collection_cumulus_id = $2`

// upsertGranuleQuery only overwrites a row that is strictly older than the
// incoming one; otherwise no row is returned.
const upsertGranuleQuery = `
	INSERT INTO granules (
		granule_id, status, collection_cumulus_id, provider_cumulus_id, pdr_cumulus_id,
		published, duration, time_to_process, time_to_archive, product_volume, cmr_link,
		error, query_fields,
		beginning_date_time, ending_date_time, last_update_date_time,
		processing_start_date_time, processing_end_date_time, production_date_time,
		timestamp, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13,
		$14, $15, $16,
		$17, $18, $19,
		$20, $21, $22
	)
	ON CONFLICT (granule_id, collection_cumulus_id) DO UPDATE SET
		status = EXCLUDED.status,
		provider_cumulus_id = EXCLUDED.provider_cumulus_id,
		pdr_cumulus_id = EXCLUDED.pdr_cumulus_id,
		published = EXCLUDED.published,
		duration = EXCLUDED.duration,
		time_to_process = EXCLUDED.time_to_process,
		time_to_archive = EXCLUDED.time_to_archive,
		product_volume = EXCLUDED.product_volume,
		cmr_link = EXCLUDED.cmr_link,
		error = EXCLUDED.error,
		query_fields = EXCLUDED.query_fields,
		beginning_date_time = EXCLUDED.beginning_date_time,
		ending_date_time = EXCLUDED.ending_date_time,
		last_update_date_time = EXCLUDED.last_update_date_time,
		processing_start_date_time = EXCLUDED.processing_start_date_time,
		processing_end_date_time = EXCLUDED.processing_end_date_time,
		production_date_time = EXCLUDED.production_date_time,
		timestamp = EXCLUDED.timestamp,
		created_at = EXCLUDED.created_at,
		updated_at = EXCLUDED.updated_at
	WHERE granules.updated_at < EXCLUDED.updated_at
	RETURNING cumulus_id`

const upsertGranuleExecutionQuery = `
	INSERT INTO granules_executions (granule_cumulus_id, execution_cumulus_id)
	VALUES ($1, $2)
	ON CONFLICT (granule_cumulus_id, execution_cumulus_id) DO NOTHING`

// PostgreSQLGranuleRepository implements outbound.GranuleRepository.
type PostgreSQLGranuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLGranuleRepository creates a new granule repository.
func NewPostgreSQLGranuleRepository(pool *pgxpool.Pool) *PostgreSQLGranuleRepository {
	return &PostgreSQLGranuleRepository{pool: pool}
}

// Get returns the stored granule, or nil when there is none.
func (r *PostgreSQLGranuleRepository) Get(
	ctx context.Context,
	granuleID string,
	collectionCumulusID int64,
) (*entity.Granule, error) {
	row := GetQueryInterface(ctx, r.pool).QueryRow(ctx, selectGranuleQuery, granuleID, collectionCumulusID)

	var (
		g         entity.Granule
		createdAt *time.Time
	)
	err := row.Scan(
		&g.CumulusID, &g.GranuleID, &g.Status, &g.CollectionCumulusID, &g.ProviderCumulusID, &g.PDRCumulusID,
		&g.Published, &g.CmrLink, &createdAt, &g.UpdatedAt,
	)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, nil //nolint:nilnil // absent granule is not an error
		}
		return nil, WrapError(err, "find granule")
	}
	if createdAt != nil {
		g.CreatedAt = *createdAt
	}

	return &g, nil
}

// Upsert inserts the granule or overwrites an older row. RowsAffected is zero
// when the stored row is at least as recent.
func (r *PostgreSQLGranuleRepository) Upsert(ctx context.Context, g *entity.Granule) (entity.UpsertResult, error) {
	var cumulusID int64
	err := GetQueryInterface(ctx, r.pool).QueryRow(ctx, upsertGranuleQuery,
		g.GranuleID, g.Status, g.CollectionCumulusID, g.ProviderCumulusID, g.PDRCumulusID,
		g.Published, g.Duration, g.TimeToProcess, g.TimeToArchive, g.ProductVolume, g.CmrLink,
		jsonColumn(g.Error), jsonColumn(g.QueryFields),
		g.BeginningDateTime, g.EndingDateTime, g.LastUpdateDateTime,
		g.ProcessingStartDateTime, g.ProcessingEndDateTime, g.ProductionDateTime,
		g.Timestamp, g.CreatedAt, g.UpdatedAt,
	).Scan(&cumulusID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.UpsertResult{}, nil
		}
		return entity.UpsertResult{}, WrapError(err, "upsert granule")
	}

	return entity.UpsertResult{CumulusID: cumulusID, RowsAffected: 1}, nil
}

// UpsertExecutionLink records that an execution processed a granule.
func (r *PostgreSQLGranuleRepository) UpsertExecutionLink(
	ctx context.Context,
	granuleCumulusID, executionCumulusID int64,
) error {
	_, err := GetQueryInterface(ctx, r.pool).Exec(ctx, upsertGranuleExecutionQuery, granuleCumulusID, executionCumulusID)
	return WrapError(err, "link granule execution")
}

// jsonColumn maps an empty document to SQL NULL.
func jsonColumn(doc map[string]any) any {
	if len(doc) == 0 {
		return nil
	}
	return doc
}
