package dto

import (
	"fmt"
	"granulemigration/internal/domain/entity"
	"time"
)

// Default tuning values for a granule migration run.
const (
	DefaultParallelScanSegments = 20
	DefaultWriteConcurrency     = 10
	DefaultLoggingInterval      = 100
	DefaultPageSize             = 100
)

// GranuleMigrationParams holds the optional filters and tuning knobs of a run.
// Zero values fall back to the defaults above.
type GranuleMigrationParams struct {
	GranuleID            string `json:"granuleId,omitempty"            yaml:"granule_id,omitempty"`
	CollectionID         string `json:"collectionId,omitempty"         yaml:"collection_id,omitempty"`
	ParallelScanSegments int    `json:"parallelScanSegments,omitempty" yaml:"parallel_scan_segments,omitempty"`
	WriteConcurrency     int    `json:"writeConcurrency,omitempty"     yaml:"write_concurrency,omitempty"`
	LoggingInterval      int    `json:"loggingInterval,omitempty"      yaml:"logging_interval,omitempty"`
	PageSize             int    `json:"pageSize,omitempty"             yaml:"page_size,omitempty"`
}

// WithDefaults returns a copy with every unset tuning value defaulted.
func (p GranuleMigrationParams) WithDefaults() GranuleMigrationParams {
	if p.ParallelScanSegments == 0 {
		p.ParallelScanSegments = DefaultParallelScanSegments
	}
	if p.WriteConcurrency == 0 {
		p.WriteConcurrency = DefaultWriteConcurrency
	}
	if p.LoggingInterval == 0 {
		p.LoggingInterval = DefaultLoggingInterval
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	return p
}

// Validate rejects negative tuning values.
func (p GranuleMigrationParams) Validate() error {
	if p.ParallelScanSegments < 0 {
		return fmt.Errorf("parallel scan segments must be positive, got %d", p.ParallelScanSegments)
	}
	if p.WriteConcurrency < 0 {
		return fmt.Errorf("write concurrency must be positive, got %d", p.WriteConcurrency)
	}
	if p.LoggingInterval < 0 {
		return fmt.Errorf("logging interval must be positive, got %d", p.LoggingInterval)
	}
	if p.PageSize < 0 {
		return fmt.Errorf("page size must be positive, got %d", p.PageSize)
	}
	return nil
}

// MigrationSummary is what a completed run reports to its caller.
type MigrationSummary struct {
	RunID            string                                 `json:"runId"                      yaml:"run_id"`
	SourceTable      string                                 `json:"sourceTable"                yaml:"source_table"`
	StartedAt        time.Time                              `json:"startedAt"                  yaml:"started_at"`
	Duration         string                                 `json:"duration"                   yaml:"duration"`
	Result           entity.GranulesAndFilesMigrationResult `json:"result"                     yaml:"result"`
	ErrorCount       int                                    `json:"errorCount"                 yaml:"error_count"`
	ErrorLogLocation string                                 `json:"errorLogLocation,omitempty" yaml:"error_log_location,omitempty"`
}
