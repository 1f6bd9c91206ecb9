package service

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"granulemigration/internal/domain/service"
	"granulemigration/internal/port/outbound"
	"time"
)

// GranuleMigrator migrates one source granule and its files per transaction.
type GranuleMigrator struct {
	dest       outbound.GranuleDestination
	resolver   *ForeignKeyResolver
	transcoder RecordTranscoder
	results    *ResultAggregator
	errorSink  ErrorSink
}

// NewGranuleMigrator creates a migrator reporting to results and errorSink.
func NewGranuleMigrator(
	dest outbound.GranuleDestination,
	resolver *ForeignKeyResolver,
	results *ResultAggregator,
	errorSink ErrorSink,
) *GranuleMigrator {
	if errorSink == nil {
		errorSink = DiscardErrorSink{}
	}
	return &GranuleMigrator{
		dest:      dest,
		resolver:  resolver,
		results:   results,
		errorSink: errorSink,
	}
}

// MigrateRecord migrates one raw source record and counts its outcome.
// Record-level failures are logged and counted, never returned; only store
// unavailability is returned so the caller can end the scan segment.
func (m *GranuleMigrator) MigrateRecord(ctx context.Context, raw outbound.RawRecord) error {
	src, err := m.transcoder.Decode(raw)
	if err != nil {
		granuleID, files, fileCount := rawIdentity(raw)
		m.results.RecordSeen(ctx, fileCount)
		m.fail(ctx, granuleID, files, fileCount,
			NewMigrationErrorWithCause(ErrorTypeTranslation, "invalid source record", granuleID, "", err))
		return nil
	}

	fileCount := src.FileCount()
	m.results.RecordSeen(ctx, fileCount)

	err = m.MigrateGranule(ctx, src)
	switch {
	case err == nil:
		m.results.RecordMigrated(ctx, fileCount)
	case errors.Is(err, domain.ErrRecordAlreadyMigrated):
		slogger.Debug(ctx, "Granule already migrated, skipping", slogger.Fields2(
			"granule_id", src.GranuleID,
			"collection_id", src.CollectionID,
		))
		m.results.RecordSkipped(ctx, fileCount)
	default:
		m.fail(ctx, src.GranuleID, raw["files"], fileCount, err)
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return err
		}
	}
	return nil
}

// MigrateGranule writes a decoded source granule and all of its files in a
// single transaction. It returns a *MigrationError describing why the record
// was not migrated, including the already-migrated case.
func (m *GranuleMigrator) MigrateGranule(ctx context.Context, src *entity.SourceGranule) error {
	err := m.dest.WithTransaction(ctx, func(ctx context.Context) error {
		return m.migrateInTransaction(ctx, src)
	})
	if err != nil {
		return classifyStoreError("granule transaction failed", src.GranuleID, src.CollectionID, err)
	}
	return nil
}

func (m *GranuleMigrator) migrateInTransaction(ctx context.Context, src *entity.SourceGranule) error {
	collectionCumulusID, err := m.resolver.ResolveGranuleCollection(ctx, src)
	if err != nil {
		return err
	}

	executionCumulusID, err := m.resolver.ResolveExecution(ctx, src.Execution)
	if err != nil {
		return classifyStoreError("failed to resolve execution", src.GranuleID, src.CollectionID, err)
	}

	existing, err := m.dest.Granules().Get(ctx, src.GranuleID, collectionCumulusID)
	if err != nil {
		return classifyStoreError("failed to fetch existing granule", src.GranuleID, src.CollectionID, err)
	}

	incomingUpdatedAt := time.UnixMilli(*src.UpdatedAt).UTC()
	if service.DecideConflict(existing, incomingUpdatedAt) == service.DecisionAlreadyMigrated {
		return NewMigrationError(
			ErrorTypeAlreadyMigrated,
			fmt.Sprintf("destination updated_at %s is not older than %s",
				existing.UpdatedAt.Format(time.RFC3339Nano), incomingUpdatedAt.Format(time.RFC3339Nano)),
			src.GranuleID, src.CollectionID,
		)
	}

	// Resolved after the conflict check: a stale record is skipped even when
	// its provider or PDR no longer exists.
	refs := service.GranuleReferences{CollectionCumulusID: collectionCumulusID}
	if err := m.resolver.ResolveProviderAndPDR(ctx, src, &refs); err != nil {
		return err
	}

	granule, err := m.transcoder.TranscodeGranule(src, refs)
	if err != nil {
		return NewMigrationErrorWithCause(ErrorTypeTranslation, "failed to translate granule",
			src.GranuleID, src.CollectionID, err)
	}

	upserted, err := m.dest.Granules().Upsert(ctx, granule)
	if err != nil {
		return classifyStoreError("failed to upsert granule", src.GranuleID, src.CollectionID, err)
	}
	if upserted.RowsAffected == 0 {
		return NewMigrationError(ErrorTypeWriteRejected, "granule upsert affected no rows",
			src.GranuleID, src.CollectionID)
	}

	if executionCumulusID != nil {
		if err := m.dest.Granules().UpsertExecutionLink(ctx, upserted.CumulusID, *executionCumulusID); err != nil {
			return classifyStoreError("failed to link execution", src.GranuleID, src.CollectionID, err)
		}
	}

	for i, sourceFile := range src.Files {
		file, err := m.transcoder.TranscodeFile(sourceFile, upserted.CumulusID)
		if err != nil {
			return NewMigrationErrorWithCause(ErrorTypeTranslation, fmt.Sprintf("failed to translate file %d", i),
				src.GranuleID, src.CollectionID, err)
		}
		if _, err := m.dest.Files().Upsert(ctx, file); err != nil {
			return classifyStoreError(fmt.Sprintf("failed to upsert file %s/%s", file.Bucket, file.Key),
				src.GranuleID, src.CollectionID, err)
		}
	}

	return nil
}

func (m *GranuleMigrator) fail(ctx context.Context, granuleID string, files any, fileCount int, cause error) {
	m.results.RecordFailed(ctx, fileCount)

	slogger.ErrorWithError(ctx, cause, "Could not create granule record and file records", slogger.Fields2(
		"granule_id", granuleID,
		"file_count", fileCount,
	))
	if err := m.errorSink.RecordFailure(granuleID, files, cause); err != nil {
		slogger.Warn(ctx, "Failed to write error log entry", slogger.Fields2(
			"granule_id", granuleID,
			"error", err.Error(),
		))
	}
}
