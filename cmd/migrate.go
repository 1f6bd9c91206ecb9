package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"granulemigration/internal/adapter/outbound/kvstore"
	"granulemigration/internal/adapter/outbound/objectstore"
	"granulemigration/internal/adapter/outbound/repository"
	"granulemigration/internal/application/common/retry"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/application/dto"
	"granulemigration/internal/application/service"
	"granulemigration/internal/config"
	"granulemigration/internal/port/outbound"
	"granulemigration/internal/version"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// migrateOptions holds the flags of "migrate granules" that are not
// configuration keys.
type migrateOptions struct {
	granuleID    string
	collectionID string
	output       string
}

// newMigrateCmd creates the migrate command group.
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run data migrations",
	}
	cmd.AddCommand(newMigrateGranulesCmd())
	return cmd
}

// newMigrateGranulesCmd creates the granules and files migration command.
func newMigrateGranulesCmd() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "granules",
		Short: "Migrate granules and their files",
		Long: `Migrate granule records and their embedded files from the source key-value
table into the relational store.

With --granule-id and/or --collection-id only the matching records are
migrated; otherwise the whole table is scanned in parallel segments.

The run summary is printed to stdout. Records that could not be migrated are
written to an error log that is uploaded to the configured bucket.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateGranules(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.granuleID, "granule-id", "", "Only migrate granules with this id")
	flags.StringVar(&opts.collectionID, "collection-id", "", "Only migrate granules of this collection (name___version)")
	flags.StringVarP(&opts.output, "output", "o", outputJSON, "Summary format (json, yaml)")
	flags.Int("segments", dto.DefaultParallelScanSegments, "Number of parallel scan segments")
	flags.Int("concurrency", dto.DefaultWriteConcurrency, "Concurrent record writes per page")
	flags.Int("logging-interval", dto.DefaultLoggingInterval, "Log progress every N granules")
	flags.Int("page-size", dto.DefaultPageSize, "Records per scan page")
	flags.String("table", "", "Source table (key-value bucket)")

	bindFlag(cmd, "migration.parallel_scan_segments", "segments")
	bindFlag(cmd, "migration.write_concurrency", "concurrency")
	bindFlag(cmd, "migration.logging_interval", "logging-interval")
	bindFlag(cmd, "migration.page_size", "page-size")
	bindFlag(cmd, "source.table", "table")

	return cmd
}

func runMigrateGranules(cmd *cobra.Command, opts *migrateOptions) error {
	if opts.output != outputJSON && opts.output != outputYAML {
		return fmt.Errorf("unsupported output format %q", opts.output)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewDatabaseConnection(ctx, databaseConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to connect to the destination database: %w", err)
	}
	defer pool.Close()

	if cfg.Migration.AcquireLock {
		release, err := acquireMigrationLock(ctx, pool, cfg.Migration.LockKey)
		if err != nil {
			return err
		}
		defer release()
	}

	conn, err := kvstore.Connect(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer conn.Close()
	js, err := conn.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	provider, reader, err := newMeterProvider(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	store, err := errorLogStore(cfg.ErrorLog)
	if err != nil {
		return err
	}

	svc := service.NewGranuleMigrationService(
		kvstore.NewNATSGranuleSource(kvstore.JetStreamBuckets(js)),
		service.GranuleMigrationServiceConfig{
			ScanRateLimit:  cfg.Migration.ScanRateLimit,
			LookupCacheTTL: cfg.Migration.LookupCacheTTL,
			MeterProvider:  provider,
		},
	)
	runner := service.NewGranuleMigrationRunner(svc, store, uploadRetryConfig(cfg.ErrorLog), errorLogSettings(cfg.ErrorLog))

	summary, runErr := runner.Run(ctx, cfg.Source.Table,
		repository.NewPostgreSQLGranuleDestination(pool), migrationParams(cfg.Migration, opts))

	logMetricTotals(context.Background(), reader)
	if summary != nil {
		if err := writeSummary(cmd.OutOrStdout(), summary, opts.output); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func databaseConfig(db config.DatabaseConfig) repository.DatabaseConfig {
	return repository.DatabaseConfig{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.Name,
		Username:        db.User,
		Password:        db.Password,
		Schema:          db.Schema,
		MaxConnections:  db.MaxConnections,
		MinConnections:  db.MinConnections,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
		SSLMode:         db.SSLMode,
	}
}

func migrationParams(m config.MigrationConfig, opts *migrateOptions) dto.GranuleMigrationParams {
	return dto.GranuleMigrationParams{
		GranuleID:            opts.granuleID,
		CollectionID:         opts.collectionID,
		ParallelScanSegments: m.ParallelScanSegments,
		WriteConcurrency:     m.WriteConcurrency,
		LoggingInterval:      m.LoggingInterval,
		PageSize:             m.PageSize,
	}
}

func errorLogSettings(e config.ErrorLogConfig) service.ErrorLogSettings {
	return service.ErrorLogSettings{
		StackName:     e.StackName,
		MigrationName: e.MigrationName,
		LocalDir:      e.LocalDir,
		KeepLocal:     e.KeepLocal,
	}
}

func uploadRetryConfig(e config.ErrorLogConfig) *retry.RetryConfig {
	backoff := e.UploadBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	return &retry.RetryConfig{
		MaxRetries:    e.UploadRetries,
		InitialDelay:  backoff,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// errorLogStore returns nil when no bucket is configured, which keeps the
// error log on local disk.
func errorLogStore(e config.ErrorLogConfig) (outbound.ErrorLogStore, error) {
	if e.Bucket == "" {
		return nil, nil //nolint:nilnil // no store configured
	}
	store, err := objectstore.NewS3ErrorLogStore(e)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func acquireMigrationLock(ctx context.Context, pool *pgxpool.Pool, key int64) (func(), error) {
	lock := repository.NewAdvisoryMigrationLock(pool, key)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("another migration holds lock %d", key)
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			slogger.ErrorWithErrorNoCtx(err, "Failed to release migration lock", slogger.Field("lock_key", key))
		}
	}, nil
}

func newMeterProvider(ctx context.Context) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", "granulemigration"),
			attribute.String("service.version", version.Get().Version),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	return provider, reader, nil
}

// logMetricTotals logs the final value of every counter recorded by the run.
func logMetricTotals(ctx context.Context, reader sdkmetric.Reader) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		slogger.WarnNoCtx("Failed to collect migration metrics", slogger.Field("error", err.Error()))
		return
	}
	totals := slogger.Fields{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			totals[m.Name] = total
		}
	}
	slogger.InfoNoCtx("Migration metric totals", totals)
}

func writeSummary(w io.Writer, summary *dto.MigrationSummary, format string) error {
	switch format {
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
		return nil
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	rootCmd.AddCommand(newMigrateCmd())
}
