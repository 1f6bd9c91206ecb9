package entity

import "time"

// Granule is the destination row of the granules table.
// (GranuleID, CollectionCumulusID) is unique.
type Granule struct {
	CumulusID           int64
	GranuleID           string
	Status              string
	CollectionCumulusID int64
	ProviderCumulusID   *int64
	PDRCumulusID        *int64

	Published     *bool
	Duration      *float64
	TimeToProcess *float64
	TimeToArchive *float64
	ProductVolume *int64
	CmrLink       *string
	Error         map[string]any
	QueryFields   map[string]any

	BeginningDateTime       *time.Time
	EndingDateTime          *time.Time
	LastUpdateDateTime      *time.Time
	ProcessingStartDateTime *time.Time
	ProcessingEndDateTime   *time.Time
	ProductionDateTime      *time.Time

	Timestamp *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNewerOrEqual reports whether this row is at least as recent as updatedAt.
func (g *Granule) IsNewerOrEqual(updatedAt time.Time) bool {
	return !g.UpdatedAt.Before(updatedAt)
}

// File is the destination row of the files table, unique on (Bucket, Key).
type File struct {
	CumulusID        int64
	GranuleCumulusID int64
	Bucket           string
	Key              string
	FileSize         *int64
	ChecksumValue    *string
	ChecksumType     *string
	FileName         *string
	Source           *string
	Path             *string
	Type             *string
}

// UpsertResult reports the outcome of an upsert statement.
type UpsertResult struct {
	CumulusID    int64
	RowsAffected int64
}
