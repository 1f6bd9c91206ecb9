package service

import (
	"granulemigration/internal/application/dto"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/domain/valueobject"
)

// SelectSource chooses how source records are read. A granule id wins over a
// collection id; with neither the whole table is scanned.
func SelectSource(params dto.GranuleMigrationParams) entity.MigrationFilters {
	switch {
	case params.GranuleID != "":
		return entity.MigrationFilters{
			Strategy:     valueobject.ScanStrategyGranuleQuery,
			GranuleID:    params.GranuleID,
			CollectionID: params.CollectionID,
		}
	case params.CollectionID != "":
		return entity.MigrationFilters{
			Strategy:     valueobject.ScanStrategyCollectionQuery,
			CollectionID: params.CollectionID,
		}
	default:
		return entity.MigrationFilters{Strategy: valueobject.ScanStrategyParallelScan}
	}
}
