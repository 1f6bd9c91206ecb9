package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGranuleMigrationParams_WithDefaults(t *testing.T) {
	got := GranuleMigrationParams{GranuleID: "G1", WriteConcurrency: 3}.WithDefaults()

	assert.Equal(t, "G1", got.GranuleID)
	assert.Equal(t, 3, got.WriteConcurrency)
	assert.Equal(t, DefaultParallelScanSegments, got.ParallelScanSegments)
	assert.Equal(t, DefaultLoggingInterval, got.LoggingInterval)
	assert.Equal(t, DefaultPageSize, got.PageSize)
}

func TestGranuleMigrationParams_Validate(t *testing.T) {
	assert.NoError(t, GranuleMigrationParams{}.Validate())
	assert.Error(t, GranuleMigrationParams{ParallelScanSegments: -1}.Validate())
	assert.Error(t, GranuleMigrationParams{WriteConcurrency: -2}.Validate())
	assert.Error(t, GranuleMigrationParams{LoggingInterval: -3}.Validate())
	assert.Error(t, GranuleMigrationParams{PageSize: -4}.Validate())
}
