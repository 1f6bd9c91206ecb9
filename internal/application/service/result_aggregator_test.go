package service

import (
	"context"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/valueobject"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultAggregator_CountsBothEntities(t *testing.T) {
	agg := NewResultAggregator(0, nil)
	ctx := context.Background()

	agg.RecordSeen(ctx, 2)
	agg.RecordMigrated(ctx, 2)
	agg.RecordSeen(ctx, 3)
	agg.RecordSkipped(ctx, 3)
	agg.RecordSeen(ctx, 1)
	agg.RecordFailed(ctx, 1)

	got := agg.Snapshot()
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 3, Migrated: 1, Skipped: 1, Failed: 1}, got.GranulesResult)
	assert.Equal(t, entity.MigrationResult{TotalSourceRecords: 6, Migrated: 2, Skipped: 3, Failed: 1}, got.FilesResult)
	assert.True(t, got.GranulesResult.IsBalanced())
	assert.True(t, got.FilesResult.IsBalanced())
}

func TestResultAggregator_ConcurrentUpdatesConserveCounts(t *testing.T) {
	agg := NewResultAggregator(7, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 300 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.RecordSeen(ctx, 2)
			switch i % 3 {
			case 0:
				agg.RecordMigrated(ctx, 2)
			case 1:
				agg.RecordSkipped(ctx, 2)
			default:
				agg.RecordFailed(ctx, 2)
			}
		}()
	}
	wg.Wait()

	got := agg.Snapshot()
	assert.Equal(t, 300, got.GranulesResult.TotalSourceRecords)
	assert.Equal(t, 100, got.GranulesResult.Migrated)
	assert.Equal(t, 100, got.GranulesResult.Skipped)
	assert.Equal(t, 100, got.GranulesResult.Failed)
	assert.Equal(t, 600, got.FilesResult.TotalSourceRecords)
	assert.True(t, got.FilesResult.IsBalanced())
}

func TestResultAggregator_FiltersAndMetrics(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	agg := NewResultAggregator(1, metrics)
	ctx := context.Background()

	filters := &entity.MigrationFilters{Strategy: valueobject.ScanStrategyGranuleQuery, GranuleID: "G1"}
	agg.SetFilters(filters)
	agg.RecordSeen(ctx, 4)
	agg.RecordMigrated(ctx, 4)

	got := agg.Snapshot()
	assert.Equal(t, filters, got.GranulesResult.Filters)
	assert.NotSame(t, filters, got.GranulesResult.Filters)
	assert.Nil(t, got.FilesResult.Filters)

	counts := recordCounts(t, reader)
	assert.Equal(t, int64(1), counts["granules/seen"])
	assert.Equal(t, int64(4), counts["files/seen"])
	assert.Equal(t, int64(1), counts["granules/migrated"])
	assert.Equal(t, int64(4), counts["files/migrated"])
}
