package service

import (
	"context"
	"errors"
	"granulemigration/internal/adapter/outbound/mock"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/errors/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type migratorFixture struct {
	dest         *mock.InMemoryGranuleDestination
	collectionID int64
	results      *ResultAggregator
	errorLog     *ErrorLogWriter
	errorBuf     *memoryErrorLog
	migrator     *GranuleMigrator
}

func newMigratorFixture(t *testing.T) *migratorFixture {
	t.Helper()
	_, dest, collectionID := seededStores()
	results := NewResultAggregator(0, nil)
	errorLog, buf := newMemoryErrorLog(t)
	return &migratorFixture{
		dest:         dest,
		collectionID: collectionID,
		results:      results,
		errorLog:     errorLog,
		errorBuf:     buf,
		migrator:     NewGranuleMigrator(dest, NewForeignKeyResolver(dest, time.Minute), results, errorLog),
	}
}

func TestGranuleMigrator_MigratesGranuleAndFiles(t *testing.T) {
	f := newMigratorFixture(t)

	err := f.migrator.MigrateRecord(context.Background(), sourceGranule("G1", "MOD09GQ___006", 100, twoFiles("G1")...))
	require.NoError(t, err)

	granule, ok := f.dest.Granule("G1", f.collectionID)
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(100).UTC(), granule.UpdatedAt)
	assert.Nil(t, granule.ProviderCumulusID)
	assert.Len(t, f.dest.FilesForGranule(granule.CumulusID), 2)

	got := f.results.Snapshot()
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 1, Migrated: 1}, got.GranulesResult)
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 2, Migrated: 2}, got.FilesResult)
	assert.Empty(t, errorLogLines(t, f.errorLog, f.errorBuf))
}

func TestGranuleMigrator_SkipsWhenDestinationIsCurrent(t *testing.T) {
	tests := []struct {
		name      string
		existing  int64
		incoming  int64
		wantSkip  bool
		wantFinal int64
	}{
		{name: "older source", existing: 200, incoming: 50, wantSkip: true, wantFinal: 200},
		{name: "equal timestamps", existing: 200, incoming: 200, wantSkip: true, wantFinal: 200},
		{name: "newer source", existing: 200, incoming: 201, wantSkip: false, wantFinal: 201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMigratorFixture(t)
			f.dest.PutGranule(&entity.Granule{
				GranuleID:           "G2",
				Status:              "completed",
				CollectionCumulusID: f.collectionID,
				UpdatedAt:           time.UnixMilli(tt.existing).UTC(),
			})

			err := f.migrator.MigrateRecord(context.Background(), sourceGranule("G2", "MOD09GQ___006", tt.incoming))
			require.NoError(t, err)

			got := f.results.Snapshot().GranulesResult
			if tt.wantSkip {
				assert.Equal(t, 1, got.Skipped)
			} else {
				assert.Equal(t, 1, got.Migrated)
			}
			granule, ok := f.dest.Granule("G2", f.collectionID)
			require.True(t, ok)
			assert.Equal(t, time.UnixMilli(tt.wantFinal).UTC(), granule.UpdatedAt)
		})
	}
}

func TestGranuleMigrator_StaleRecordWithMissingReferencesIsSkipped(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		incoming int64
	}{
		{name: "older source, missing pdr", field: "pdrName", value: "gone.PDR", incoming: 50},
		{name: "equal timestamps, missing provider", field: "provider", value: "gone_provider", incoming: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newMigratorFixture(t)
			f.dest.PutGranule(&entity.Granule{
				GranuleID:           "G2",
				Status:              "completed",
				CollectionCumulusID: f.collectionID,
				UpdatedAt:           time.UnixMilli(200).UTC(),
			})
			record := sourceGranule("G2", "MOD09GQ___006", tt.incoming)
			record[tt.field] = tt.value

			require.NoError(t, f.migrator.MigrateRecord(context.Background(), record))

			assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 1, Skipped: 1}, f.results.Snapshot().GranulesResult)
			assert.Empty(t, errorLogLines(t, f.errorLog, f.errorBuf))
		})
	}
}

func TestGranuleMigrator_MissingCollectionFails(t *testing.T) {
	f := newMigratorFixture(t)

	err := f.migrator.MigrateRecord(context.Background(), sourceGranule("G3", "C-missing___1", 100, twoFiles("G3")...))
	require.NoError(t, err)

	got := f.results.Snapshot()
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 1, Failed: 1}, got.GranulesResult)
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 2, Failed: 2}, got.FilesResult)
	assert.Zero(t, f.dest.GranuleCount())

	lines := errorLogLines(t, f.errorLog, f.errorBuf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "granuleId: G3 with files [")
	assert.Contains(t, lines[0], "G3.hdf")
	assert.Contains(t, lines[0], "missing_dependency")
}

func TestGranuleMigrator_MalformedCollectionIDFails(t *testing.T) {
	f := newMigratorFixture(t)

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), sourceGranule("G", "no-version", 1)))
	assert.Equal(t, 1, f.results.Snapshot().GranulesResult.Failed)
}

func TestGranuleMigrator_AtomicityOnFileTranslationFailure(t *testing.T) {
	f := newMigratorFixture(t)
	record := sourceGranule("G4", "MOD09GQ___006", 100,
		sourceFile("protected", "G4.hdf"),
		map[string]any{"fileName": "orphan.xml"},
	)

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), record))

	assert.Zero(t, f.dest.GranuleCount())
	assert.Zero(t, f.dest.FileCount())
	assert.Equal(t, 1, f.dest.Rollbacks())
	got := f.results.Snapshot()
	assert.Equal(t, 1, got.GranulesResult.Failed)
	assert.Equal(t, 2, got.FilesResult.Failed)
}

func TestGranuleMigrator_AtomicityOnFileWriteFailure(t *testing.T) {
	f := newMigratorFixture(t)
	f.dest.FailFileUpsert = func(file *entity.File) error {
		if file.Bucket == "public" {
			return errors.New("check constraint violated")
		}
		return nil
	}

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), sourceGranule("G5", "MOD09GQ___006", 100, twoFiles("G5")...)))

	assert.Zero(t, f.dest.GranuleCount())
	assert.Zero(t, f.dest.FileCount())
	assert.Equal(t, 1, f.results.Snapshot().GranulesResult.Failed)
}

func TestGranuleMigrator_ExecutionIsOptional(t *testing.T) {
	f := newMigratorFixture(t)
	executionID := f.dest.AddExecution("arn:aws:states:exec-1")

	withMissing := sourceGranule("G6", "MOD09GQ___006", 100)
	withMissing["execution"] = "arn:aws:states:does-not-exist"
	withKnown := sourceGranule("G7", "MOD09GQ___006", 100)
	withKnown["execution"] = "arn:aws:states:exec-1"

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), withMissing))
	require.NoError(t, f.migrator.MigrateRecord(context.Background(), withKnown))

	assert.Equal(t, 2, f.results.Snapshot().GranulesResult.Migrated)
	g6, ok := f.dest.Granule("G6", f.collectionID)
	require.True(t, ok)
	assert.Empty(t, f.dest.ExecutionLinks(g6.CumulusID))
	g7, ok := f.dest.Granule("G7", f.collectionID)
	require.True(t, ok)
	assert.Equal(t, []int64{executionID}, f.dest.ExecutionLinks(g7.CumulusID))
}

func TestGranuleMigrator_ProviderAndPDR(t *testing.T) {
	f := newMigratorFixture(t)
	providerID := f.dest.AddProvider("s3_provider")
	pdrID := f.dest.AddPDR("MOD09GQ.PDR")

	known := sourceGranule("G8", "MOD09GQ___006", 100)
	known["provider"] = "s3_provider"
	known["pdrName"] = "MOD09GQ.PDR"
	unknown := sourceGranule("G9", "MOD09GQ___006", 100)
	unknown["provider"] = "unknown_provider"

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), known))
	require.NoError(t, f.migrator.MigrateRecord(context.Background(), unknown))

	granule, ok := f.dest.Granule("G8", f.collectionID)
	require.True(t, ok)
	assert.Equal(t, &providerID, granule.ProviderCumulusID)
	assert.Equal(t, &pdrID, granule.PDRCumulusID)

	got := f.results.Snapshot().GranulesResult
	assert.Equal(t, 1, got.Migrated)
	assert.Equal(t, 1, got.Failed)
}

func TestGranuleMigrator_WriteRejected(t *testing.T) {
	f := newMigratorFixture(t)
	f.dest.RejectUpsert = func(*entity.Granule) bool { return true }

	src, err := RecordTranscoder{}.Decode(sourceGranule("G10", "MOD09GQ___006", 100))
	require.NoError(t, err)

	err = f.migrator.MigrateGranule(context.Background(), src)
	assert.ErrorIs(t, err, domain.ErrWriteRejected)
	assert.Zero(t, f.dest.GranuleCount())
}

func TestGranuleMigrator_InvalidRecordIsCountedFailed(t *testing.T) {
	f := newMigratorFixture(t)
	record := sourceGranule("G11", "MOD09GQ___006", 100, twoFiles("G11")...)
	delete(record, "updatedAt")

	require.NoError(t, f.migrator.MigrateRecord(context.Background(), record))

	got := f.results.Snapshot()
	assert.Equal(t, 1, got.GranulesResult.Failed)
	assert.Equal(t, 2, got.FilesResult.Failed)
	lines := errorLogLines(t, f.errorLog, f.errorBuf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "granuleId: G11")
}

func TestGranuleMigrator_UnavailableDestinationPropagates(t *testing.T) {
	f := newMigratorFixture(t)
	f.dest.SetUnavailable(errors.New("connection refused"))

	err := f.migrator.MigrateRecord(context.Background(), sourceGranule("G12", "MOD09GQ___006", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	got := f.results.Snapshot().GranulesResult
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 1, Failed: 1}, got)
}
