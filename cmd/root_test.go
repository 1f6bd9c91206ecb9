package cmd

import (
	"bytes"
	"encoding/json"
	"granulemigration/internal/application/dto"
	"granulemigration/internal/config"
	"granulemigration/internal/domain/entity"
	"granulemigration/internal/version"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	for _, path := range [][]string{{"version"}, {"migrate"}, {"migrate", "granules"}} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestMigrateGranulesCommand_Flags(t *testing.T) {
	cmd := newMigrateGranulesCmd()
	for _, name := range []string{
		"granule-id", "collection-id", "output", "segments", "concurrency", "logging-interval", "page-size", "table",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "20", cmd.Flags().Lookup("segments").DefValue)
	assert.Equal(t, "10", cmd.Flags().Lookup("concurrency").DefValue)
}

func TestMigrateGranulesCommand_RejectsUnknownOutput(t *testing.T) {
	err := runMigrateGranules(newMigrateGranulesCmd(), &migrateOptions{output: "xml"})
	assert.ErrorContains(t, err, `unsupported output format "xml"`)
}

func TestVersionCommand(t *testing.T) {
	version.SetBuildVars("v1.5.0", "short123", "2025-06-15T10:30:00Z")
	t.Cleanup(version.ResetBuildVars)

	var buf bytes.Buffer
	cmd := newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Granule Migration CLI")
	assert.Contains(t, buf.String(), "Version: v1.5.0")

	buf.Reset()
	cmd = newVersionCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"--short"})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "v1.5.0\n", buf.String())
}

func TestDatabaseConfig_MapsEveryField(t *testing.T) {
	got := databaseConfig(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "migrator", Password: "pw", Name: "cumulus", Schema: "public",
		SSLMode: "require", MaxConnections: 8, MinConnections: 2,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: time.Minute,
	})
	assert.Equal(t, "db", got.Host)
	assert.Equal(t, 5433, got.Port)
	assert.Equal(t, "migrator", got.Username)
	assert.Equal(t, "cumulus", got.Database)
	assert.Equal(t, "public", got.Schema)
	assert.Equal(t, "require", got.SSLMode)
	assert.Equal(t, 8, got.MaxConnections)
	assert.Equal(t, 2, got.MinConnections)
	assert.Equal(t, time.Hour, got.ConnMaxLifetime)
	assert.Equal(t, time.Minute, got.ConnMaxIdleTime)
}

func TestMigrationParams(t *testing.T) {
	got := migrationParams(config.MigrationConfig{
		ParallelScanSegments: 4, WriteConcurrency: 2, LoggingInterval: 50, PageSize: 25,
	}, &migrateOptions{granuleID: "G1", collectionID: "MOD09GQ___006"})
	assert.Equal(t, dto.GranuleMigrationParams{
		GranuleID: "G1", CollectionID: "MOD09GQ___006",
		ParallelScanSegments: 4, WriteConcurrency: 2, LoggingInterval: 50, PageSize: 25,
	}, got)
}

func TestUploadRetryConfig(t *testing.T) {
	got := uploadRetryConfig(config.ErrorLogConfig{UploadRetries: 3})
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, got.InitialDelay)

	got = uploadRetryConfig(config.ErrorLogConfig{UploadRetries: 1, UploadBackoff: time.Second})
	assert.Equal(t, time.Second, got.InitialDelay)
}

func TestErrorLogStore(t *testing.T) {
	store, err := errorLogStore(config.ErrorLogConfig{})
	require.NoError(t, err)
	assert.Nil(t, store)

	store, err = errorLogStore(config.ErrorLogConfig{Bucket: "internal", Endpoint: "localhost:9000"})
	require.NoError(t, err)
	assert.NotNil(t, store)
}

func testSummary() *dto.MigrationSummary {
	return &dto.MigrationSummary{
		RunID:       "run-1",
		SourceTable: "granules",
		StartedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration:    "1s",
		Result: entity.GranulesAndFilesMigrationResult{
			GranulesResult: entity.MigrationResult{TotalSourceRecords: 3, Migrated: 1, Skipped: 1, Failed: 1},
			FilesResult:    entity.MigrationResult{TotalSourceRecords: 4, Migrated: 2, Failed: 2},
		},
		ErrorCount: 1,
	}
}

func TestWriteSummary(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSummary(&buf, testSummary(), outputJSON))

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "run-1", decoded["runId"])
		granules := decoded["result"].(map[string]any)["granulesResult"].(map[string]any)
		assert.InDelta(t, 3, granules["total_source_records"], 0)
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeSummary(&buf, testSummary(), outputYAML))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, "granules", decoded["source_table"])
		files := decoded["result"].(map[string]any)["files_result"].(map[string]any)
		assert.Equal(t, 2, files["failed"])
	})
}
