package service

import (
	"context"
	"fmt"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/application/dto"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/domain/valueobject"
	"granulemigration/internal/port/outbound"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// GranuleMigrationServiceConfig holds the settings shared by every run.
type GranuleMigrationServiceConfig struct {
	// ScanRateLimit caps pages per second across all scan segments. Zero disables it.
	ScanRateLimit float64
	// LookupCacheTTL bounds reuse of resolved collection, provider and PDR ids.
	LookupCacheTTL time.Duration
	// MeterProvider receives the run metrics. Nil disables metrics.
	MeterProvider metric.MeterProvider
}

// GranuleMigrationService migrates granules and their files from the source
// store into a destination.
type GranuleMigrationService struct {
	source outbound.GranuleSource
	config GranuleMigrationServiceConfig
}

// NewGranuleMigrationService creates a migration service reading from source.
func NewGranuleMigrationService(
	source outbound.GranuleSource,
	config GranuleMigrationServiceConfig,
) *GranuleMigrationService {
	return &GranuleMigrationService{
		source: source,
		config: config,
	}
}

// MigrateGranulesAndFilesRequest describes one migration run.
type MigrateGranulesAndFilesRequest struct {
	RunID       string
	SourceTable string
	Params      dto.GranuleMigrationParams
	Destination outbound.GranuleDestination
	ErrorSink   ErrorSink
}

// MigrateGranulesAndFiles runs the migration and returns the counters for
// granules and files. The counters are returned even when an error is: the
// error only reports store unavailability that ended part of the run.
func (s *GranuleMigrationService) MigrateGranulesAndFiles(
	ctx context.Context,
	req MigrateGranulesAndFilesRequest,
) (entity.GranulesAndFilesMigrationResult, error) {
	if req.SourceTable == "" {
		return entity.GranulesAndFilesMigrationResult{}, fmt.Errorf("%w: source table is required", domain.ErrInvalidInput)
	}
	if req.Destination == nil {
		return entity.GranulesAndFilesMigrationResult{}, fmt.Errorf("%w: destination is required", domain.ErrInvalidInput)
	}
	if err := req.Params.Validate(); err != nil {
		return entity.GranulesAndFilesMigrationResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	params := req.Params.WithDefaults()

	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	metrics, err := s.newMetrics(runID)
	if err != nil {
		return entity.GranulesAndFilesMigrationResult{}, err
	}

	results := NewResultAggregator(params.LoggingInterval, metrics)
	resolver := NewForeignKeyResolver(req.Destination, s.config.LookupCacheTTL)
	migrator := NewGranuleMigrator(req.Destination, resolver, results, req.ErrorSink)

	filters := SelectSource(params)
	slogger.Info(ctx, "Starting granule and file migration", slogger.Fields{
		"run_id":                 runID,
		"source_table":           req.SourceTable,
		"strategy":               filters.Strategy.String(),
		"parallel_scan_segments": params.ParallelScanSegments,
		"write_concurrency":      params.WriteConcurrency,
		"page_size":              params.PageSize,
	})

	start := time.Now()
	if filters.Strategy.IsTargeted() {
		results.SetFilters(&filters)
		err = s.migrateTargeted(ctx, req.SourceTable, filters, migrator)
	} else {
		err = s.migrateParallelScan(ctx, req.SourceTable, params, migrator, metrics)
	}

	result := results.Snapshot()
	fields := slogger.Fields{
		"run_id":            runID,
		"granules_seen":     result.GranulesResult.TotalSourceRecords,
		"granules_migrated": result.GranulesResult.Migrated,
		"granules_skipped":  result.GranulesResult.Skipped,
		"granules_failed":   result.GranulesResult.Failed,
		"files_migrated":    result.FilesResult.Migrated,
		"duration":          time.Since(start).String(),
	}
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Granule and file migration ended with errors", fields)
	} else {
		slogger.Info(ctx, "Granule and file migration completed", fields)
	}

	return result, err
}

func (s *GranuleMigrationService) newMetrics(runID string) (*MigrationMetrics, error) {
	if s.config.MeterProvider == nil {
		return nil, nil //nolint:nilnil // metrics are optional
	}
	return NewMigrationMetricsWithProvider(runID, s.config.MeterProvider)
}

func (s *GranuleMigrationService) migrateParallelScan(
	ctx context.Context,
	table string,
	params dto.GranuleMigrationParams,
	migrator *GranuleMigrator,
	metrics *MigrationMetrics,
) error {
	var limiter *rate.Limiter
	if s.config.ScanRateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.config.ScanRateLimit), max(1, int(s.config.ScanRateLimit)))
	}

	writer := NewBatchWriter(params.WriteConcurrency, migrator.MigrateRecord)
	coordinator := NewParallelScanCoordinator(s.source, params.ParallelScanSegments, params.PageSize, limiter, metrics)
	return coordinator.Run(ctx, table, writer.PageHandler())
}

// migrateTargeted pulls query results one at a time and migrates them in order.
func (s *GranuleMigrationService) migrateTargeted(
	ctx context.Context,
	table string,
	filters entity.MigrationFilters,
	migrator *GranuleMigrator,
) error {
	next, stop := iter.Pull2(s.targetedRecords(ctx, table, filters))
	defer stop()

	for {
		raw, err, ok := next()
		if !ok {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s query failed: %w", filters.Strategy, err)
		}
		if err := migrator.MigrateRecord(ctx, raw); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (s *GranuleMigrationService) targetedRecords(
	ctx context.Context,
	table string,
	filters entity.MigrationFilters,
) iter.Seq2[outbound.RawRecord, error] {
	if filters.Strategy == valueobject.ScanStrategyCollectionQuery {
		return s.source.QueryByCollectionID(ctx, table, filters.CollectionID)
	}

	records := s.source.QueryByGranuleID(ctx, table, filters.GranuleID)
	if filters.CollectionID == "" {
		return records
	}
	return func(yield func(outbound.RawRecord, error) bool) {
		for raw, err := range records {
			if err == nil {
				if collectionID, _ := raw["collectionId"].(string); collectionID != filters.CollectionID {
					continue
				}
			}
			if !yield(raw, err) {
				return
			}
		}
	}
}
