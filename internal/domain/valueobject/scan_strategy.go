package valueobject

// ScanStrategy describes how source records are read for one migration run.
type ScanStrategy string

// Scan strategy constants.
const (
	// ScanStrategyGranuleQuery reads records matching one granule identifier.
	ScanStrategyGranuleQuery ScanStrategy = "granule_query"
	// ScanStrategyCollectionQuery reads records through the collection index.
	ScanStrategyCollectionQuery ScanStrategy = "collection_query"
	// ScanStrategyParallelScan reads the whole table across N segments.
	ScanStrategyParallelScan ScanStrategy = "parallel_scan"
)

// String returns the string representation of the strategy.
func (s ScanStrategy) String() string {
	return string(s)
}

// IsTargeted returns true when the strategy reads a filtered subset of the table.
func (s ScanStrategy) IsTargeted() bool {
	return s == ScanStrategyGranuleQuery || s == ScanStrategyCollectionQuery
}
