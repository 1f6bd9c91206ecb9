package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MigrationRecordsCounterName        = "granule_migration_records_total"
	MigrationSegmentsCounterName       = "granule_migration_segments_total"
	MigrationPageDurationHistogramName = "granule_migration_page_duration_seconds"

	migrationMeterName = "granulemigration"
)

// Attribute keys.
const (
	AttrEntity        = "entity"
	AttrOutcome       = "outcome"
	AttrSegmentResult = "segment_result"
	AttrRunID         = "run_id"
)

// Entity and outcome attribute values.
const (
	EntityGranules = "granules"
	EntityFiles    = "files"

	OutcomeSeen     = "seen"
	OutcomeMigrated = "migrated"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// getPageDurationBuckets covers page migrations from 10ms to 5min.
func getPageDurationBuckets() []float64 {
	return []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300}
}

// MigrationMetrics provides OpenTelemetry counters for one migration run.
// A nil *MigrationMetrics records nothing.
type MigrationMetrics struct {
	recordsCounter  metric.Int64Counter
	segmentsCounter metric.Int64Counter
	pageDuration    metric.Float64Histogram

	runAttr attribute.KeyValue
}

// NewMigrationMetrics creates metrics using the global meter provider.
func NewMigrationMetrics(runID string) (*MigrationMetrics, error) {
	return NewMigrationMetricsWithProvider(runID, otel.GetMeterProvider())
}

// NewMigrationMetricsWithProvider creates metrics using the given meter provider.
func NewMigrationMetricsWithProvider(runID string, provider metric.MeterProvider) (*MigrationMetrics, error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	meter := provider.Meter(migrationMeterName)

	recordsCounter, err := meter.Int64Counter(
		MigrationRecordsCounterName,
		metric.WithDescription("Source records handled by the granule migration, by entity and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	segmentsCounter, err := meter.Int64Counter(
		MigrationSegmentsCounterName,
		metric.WithDescription("Parallel scan segments finished, by result"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pageDuration, err := meter.Float64Histogram(
		MigrationPageDurationHistogramName,
		metric.WithDescription("Time to migrate one page of source records"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(getPageDurationBuckets()...),
	)
	if err != nil {
		return nil, err
	}

	return &MigrationMetrics{
		recordsCounter:  recordsCounter,
		segmentsCounter: segmentsCounter,
		pageDuration:    pageDuration,
		runAttr:         attribute.String(AttrRunID, runID),
	}, nil
}

// RecordOutcome adds n records of the given entity kind and outcome.
func (m *MigrationMetrics) RecordOutcome(ctx context.Context, entityKind, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsCounter.Add(ctx, int64(n), metric.WithAttributes(
		m.runAttr,
		attribute.String(AttrEntity, entityKind),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordSegment counts one finished scan segment.
func (m *MigrationMetrics) RecordSegment(ctx context.Context, err error) {
	if m == nil {
		return
	}
	result := "completed"
	if err != nil {
		result = "failed"
	}
	m.segmentsCounter.Add(ctx, 1, metric.WithAttributes(m.runAttr, attribute.String(AttrSegmentResult, result)))
}

// RecordPageDuration records how long one page took to migrate.
func (m *MigrationMetrics) RecordPageDuration(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.pageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(m.runAttr))
}
