package outbound

import (
	"context"
	"iter"
)

// RawRecord is a source record as returned by the key-value store: an
// untyped attribute map.
type RawRecord map[string]any

// ScanSegment identifies one partition of a parallel full-table scan.
type ScanSegment struct {
	// Segment is the zero-based index of this partition.
	Segment int
	// TotalSegments is the number of partitions the table is split into.
	TotalSegments int
	// PageSize bounds the number of records delivered per page.
	PageSize int
}

// PageHandler receives one page of raw records from a scan segment. The
// segment does not request its next page until the handler returns.
type PageHandler func(ctx context.Context, page []RawRecord) error

// GranuleSource is the read side of the schemaless source store.
type GranuleSource interface {
	// QueryByGranuleID returns a finite, non-restartable sequence of records
	// whose granule identifier matches exactly.
	QueryByGranuleID(ctx context.Context, table, granuleID string) iter.Seq2[RawRecord, error]

	// QueryByCollectionID returns a finite, non-restartable sequence of the
	// records indexed under the given collection identifier.
	QueryByCollectionID(ctx context.Context, table, collectionID string) iter.Seq2[RawRecord, error]

	// ScanSegment walks one partition of the table, handing each page to fn.
	// A read failure or a handler error ends the segment and is returned.
	ScanSegment(ctx context.Context, table string, segment ScanSegment, fn PageHandler) error
}
