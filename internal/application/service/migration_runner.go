package service

import (
	"context"
	"errors"
	"fmt"
	"granulemigration/internal/application/common/logging"
	"granulemigration/internal/application/common/retry"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/application/dto"
	"granulemigration/internal/port/outbound"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
)

// DefaultMigrationName names the error log of a granule and file migration.
const DefaultMigrationName = "granulesAndFiles"

// ErrorLogSettings controls where the error log of a run is written and persisted.
type ErrorLogSettings struct {
	StackName     string
	MigrationName string
	// LocalDir holds the error log while the run is in progress. Empty uses the OS temp dir.
	LocalDir string
	// KeepLocal leaves the local copy in place after a successful upload.
	KeepLocal bool
}

// ErrorLogKey returns the object key of a run's error log.
func ErrorLogKey(stackName, migrationName string, startedAt time.Time) string {
	return fmt.Sprintf("%s/data-migration2-%s-errors-%d.json", stackName, migrationName, startedAt.UnixMilli())
}

// GranuleMigrationRunner runs a migration end to end: it opens the error log,
// migrates, closes the log and persists it to the error log store.
type GranuleMigrationRunner struct {
	service  *GranuleMigrationService
	store    outbound.ErrorLogStore
	retrier  *retry.RetryExecutor
	settings ErrorLogSettings
	now      func() time.Time
}

// NewGranuleMigrationRunner creates a runner. A nil store keeps the error log
// on local disk.
func NewGranuleMigrationRunner(
	service *GranuleMigrationService,
	store outbound.ErrorLogStore,
	retryConfig *retry.RetryConfig,
	settings ErrorLogSettings,
) *GranuleMigrationRunner {
	if settings.MigrationName == "" {
		settings.MigrationName = DefaultMigrationName
	}
	return &GranuleMigrationRunner{
		service:  service,
		store:    store,
		retrier:  retry.NewRetryExecutor(retryConfig),
		settings: settings,
		now:      time.Now,
	}
}

// Run migrates table into dest and returns the run summary. The summary is
// returned even when err is non-nil.
func (r *GranuleMigrationRunner) Run(
	ctx context.Context,
	table string,
	dest outbound.GranuleDestination,
	params dto.GranuleMigrationParams,
) (*dto.MigrationSummary, error) {
	runID := uuid.New().String()
	ctx = logging.WithCorrelationID(ctx, runID)
	startedAt := r.now().UTC()

	file, err := os.CreateTemp(r.settings.LocalDir,
		fmt.Sprintf("data-migration2-%s-errors-*.json", r.settings.MigrationName))
	if err != nil {
		return nil, fmt.Errorf("failed to create error log: %w", err)
	}
	errorLog, err := NewErrorLogWriter(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	result, migrateErr := r.service.MigrateGranulesAndFiles(ctx, MigrateGranulesAndFilesRequest{
		RunID:       runID,
		SourceTable: table,
		Params:      params,
		Destination: dest,
		ErrorSink:   errorLog,
	})
	closeErr := errorLog.Close()

	summary := &dto.MigrationSummary{
		RunID:       runID,
		SourceTable: table,
		StartedAt:   startedAt,
		Duration:    r.now().UTC().Sub(startedAt).String(),
		Result:      result,
		ErrorCount:  errorLog.Count(),
	}

	var persistErr error
	if closeErr == nil {
		key := ErrorLogKey(r.settings.StackName, r.settings.MigrationName, startedAt)
		summary.ErrorLogLocation, persistErr = r.persist(ctx, file.Name(), key)
	}

	return summary, errors.Join(migrateErr, closeErr, persistErr)
}

func (r *GranuleMigrationRunner) persist(ctx context.Context, path, key string) (string, error) {
	if r.store == nil {
		return path, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return path, fmt.Errorf("failed to reopen error log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return path, fmt.Errorf("failed to stat error log: %w", err)
	}

	var location string
	err = r.retrier.Execute(ctx, func(ctx context.Context) error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		uploaded, uploadErr := r.store.Upload(ctx, key, f, info.Size())
		if uploadErr != nil {
			return uploadErr
		}
		location = uploaded
		return nil
	})
	if err != nil {
		slogger.ErrorWithError(ctx, err, "Failed to persist error log, keeping local copy", slogger.Field("path", path))
		return path, fmt.Errorf("failed to persist error log: %w", err)
	}

	slogger.Info(ctx, "Error log persisted", slogger.Fields2("location", location, "bytes", info.Size()))
	if !r.settings.KeepLocal {
		if err := os.Remove(path); err != nil {
			slogger.Warn(ctx, "Failed to remove local error log", slogger.Fields2("path", path, "error", err.Error()))
		}
	}
	return location, nil
}
