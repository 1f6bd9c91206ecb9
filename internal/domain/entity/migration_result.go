package entity

import "granulemigration/internal/domain/valueobject"

// MigrationFilters records which targeted query, if any, produced the source records.
type MigrationFilters struct {
	Strategy     valueobject.ScanStrategy `json:"strategy"               yaml:"strategy"`
	GranuleID    string                   `json:"granuleId,omitempty"    yaml:"granule_id,omitempty"`
	CollectionID string                   `json:"collectionId,omitempty" yaml:"collection_id,omitempty"`
}

// MigrationResult holds the counters for one entity kind.
type MigrationResult struct {
	TotalSourceRecords int               `json:"total_source_records" yaml:"total_source_records"`
	Migrated           int               `json:"migrated"             yaml:"migrated"`
	Skipped            int               `json:"skipped"              yaml:"skipped"`
	Failed             int               `json:"failed"               yaml:"failed"`
	Filters            *MigrationFilters `json:"filters,omitempty"    yaml:"filters,omitempty"`
}

// Processed returns the number of records with a final outcome.
func (r MigrationResult) Processed() int {
	return r.Migrated + r.Skipped + r.Failed
}

// IsBalanced reports whether every seen record has exactly one outcome.
func (r MigrationResult) IsBalanced() bool {
	return r.Processed() == r.TotalSourceRecords
}

// GranulesAndFilesMigrationResult is the summary returned by one migration run.
type GranulesAndFilesMigrationResult struct {
	GranulesResult MigrationResult `json:"granulesResult" yaml:"granules_result"`
	FilesResult    MigrationResult `json:"filesResult"    yaml:"files_result"`
}
