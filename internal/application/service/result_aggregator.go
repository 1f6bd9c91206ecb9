package service

import (
	"context"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/domain/entity"
	"sync"
)

// ResultAggregator merges per-record outcomes from concurrent migrations into
// one granule result and one file result.
type ResultAggregator struct {
	mu              sync.Mutex
	granules        entity.MigrationResult
	files           entity.MigrationResult
	loggingInterval int
	metrics         *MigrationMetrics
}

// NewResultAggregator creates an aggregator that logs progress every
// loggingInterval processed granule records. Zero disables progress logging.
func NewResultAggregator(loggingInterval int, metrics *MigrationMetrics) *ResultAggregator {
	return &ResultAggregator{
		loggingInterval: loggingInterval,
		metrics:         metrics,
	}
}

// SetFilters records the targeted query that produced the source records.
func (a *ResultAggregator) SetFilters(filters *entity.MigrationFilters) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.granules.Filters = filters
}

// RecordSeen counts one source granule and its files before migration starts.
func (a *ResultAggregator) RecordSeen(ctx context.Context, fileCount int) {
	a.mu.Lock()
	a.granules.TotalSourceRecords++
	a.files.TotalSourceRecords += fileCount
	a.mu.Unlock()

	a.metrics.RecordOutcome(ctx, EntityGranules, OutcomeSeen, 1)
	a.metrics.RecordOutcome(ctx, EntityFiles, OutcomeSeen, fileCount)
}

// RecordMigrated counts a granule and all of its files as migrated.
func (a *ResultAggregator) RecordMigrated(ctx context.Context, fileCount int) {
	a.record(ctx, OutcomeMigrated, fileCount, func(r *entity.MigrationResult, n int) { r.Migrated += n })
}

// RecordSkipped counts a granule and all of its files as already migrated.
func (a *ResultAggregator) RecordSkipped(ctx context.Context, fileCount int) {
	a.record(ctx, OutcomeSkipped, fileCount, func(r *entity.MigrationResult, n int) { r.Skipped += n })
}

// RecordFailed counts a granule and all of its files as failed.
func (a *ResultAggregator) RecordFailed(ctx context.Context, fileCount int) {
	a.record(ctx, OutcomeFailed, fileCount, func(r *entity.MigrationResult, n int) { r.Failed += n })
}

func (a *ResultAggregator) record(
	ctx context.Context,
	outcome string,
	fileCount int,
	add func(r *entity.MigrationResult, n int),
) {
	a.mu.Lock()
	add(&a.granules, 1)
	add(&a.files, fileCount)
	processed := a.granules.Processed()
	total := a.granules.TotalSourceRecords
	a.mu.Unlock()

	a.metrics.RecordOutcome(ctx, EntityGranules, outcome, 1)
	a.metrics.RecordOutcome(ctx, EntityFiles, outcome, fileCount)

	if a.loggingInterval > 0 && processed%a.loggingInterval == 0 {
		slogger.Info(ctx, "Batch of granule records processed", slogger.Fields3(
			"batch_size", a.loggingInterval,
			"processed", processed,
			"total_seen", total,
		))
	}
}

// Snapshot returns a consistent copy of both results.
func (a *ResultAggregator) Snapshot() entity.GranulesAndFilesMigrationResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	result := entity.GranulesAndFilesMigrationResult{
		GranulesResult: a.granules,
		FilesResult:    a.files,
	}
	if a.granules.Filters != nil {
		filters := *a.granules.Filters
		result.GranulesResult.Filters = &filters
	}
	return result
}
