package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Source    SourceConfig    `mapstructure:"source"`
	Migration MigrationConfig `mapstructure:"migration"`
	ErrorLog  ErrorLogConfig  `mapstructure:"error_log"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig holds the destination database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	Schema          string        `mapstructure:"schema"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s search_path=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode, d.Schema)
}

// NATSConfig holds the connection settings of the source key-value store.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// SourceConfig names the source table, a JetStream key-value bucket.
type SourceConfig struct {
	Table string `mapstructure:"table"`
}

// MigrationConfig holds the tuning knobs of a migration run.
type MigrationConfig struct {
	ParallelScanSegments int           `mapstructure:"parallel_scan_segments"`
	WriteConcurrency     int           `mapstructure:"write_concurrency"`
	LoggingInterval      int           `mapstructure:"logging_interval"`
	PageSize             int           `mapstructure:"page_size"`
	ScanRateLimit        float64       `mapstructure:"scan_rate_limit"` // pages per second, 0 disables
	LookupCacheTTL       time.Duration `mapstructure:"lookup_cache_ttl"`
	AcquireLock          bool          `mapstructure:"acquire_lock"`
	LockKey              int64         `mapstructure:"lock_key"`
}

// ErrorLogConfig controls where the error log of a run is persisted.
// An empty Bucket keeps the log on local disk.
type ErrorLogConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	StackName     string        `mapstructure:"stack_name"`
	MigrationName string        `mapstructure:"migration_name"`
	LocalDir      string        `mapstructure:"local_dir"`
	KeepLocal     bool          `mapstructure:"keep_local"`
	UploadRetries int           `mapstructure:"upload_retries"`
	UploadBackoff time.Duration `mapstructure:"upload_backoff"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default value of every setting.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 0)

	// NATS defaults
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.timeout", "5s")

	// Source defaults
	v.SetDefault("source.table", "granules")

	// Migration defaults
	v.SetDefault("migration.parallel_scan_segments", 20)
	v.SetDefault("migration.write_concurrency", 10)
	v.SetDefault("migration.logging_interval", 100)
	v.SetDefault("migration.page_size", 100)
	v.SetDefault("migration.scan_rate_limit", 0)
	v.SetDefault("migration.lookup_cache_ttl", "5m")
	v.SetDefault("migration.acquire_lock", true)
	v.SetDefault("migration.lock_key", 4242)

	// Error log defaults
	v.SetDefault("error_log.region", "us-east-1")
	v.SetDefault("error_log.use_ssl", true)
	v.SetDefault("error_log.migration_name", "granulesAndFiles")
	v.SetDefault("error_log.upload_retries", 3)
	v.SetDefault("error_log.upload_backoff", "500ms")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// New creates a new Config instance from Viper and panics when it is invalid.
func New(v *viper.Viper) *Config {
	config, err := Load(v)
	if err != nil {
		panic(err)
	}
	return config
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Required fields validation
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}

	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}

	if c.Source.Table == "" {
		return errors.New("source.table is required")
	}

	// Validate numeric ranges
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Migration.ParallelScanSegments < 1 {
		return errors.New("migration.parallel_scan_segments must be at least 1")
	}

	if c.Migration.WriteConcurrency < 1 {
		return errors.New("migration.write_concurrency must be at least 1")
	}

	if c.Migration.PageSize < 1 {
		return errors.New("migration.page_size must be at least 1")
	}

	if c.Migration.LoggingInterval < 0 {
		return errors.New("migration.logging_interval cannot be negative")
	}

	if c.Migration.ScanRateLimit < 0 {
		return errors.New("migration.scan_rate_limit cannot be negative")
	}

	if c.ErrorLog.Bucket != "" {
		if c.ErrorLog.Endpoint == "" {
			return errors.New("error_log.endpoint is required when error_log.bucket is set")
		}
		if c.ErrorLog.StackName == "" {
			return errors.New("error_log.stack_name is required when error_log.bucket is set")
		}
	}

	if c.ErrorLog.UploadRetries < 0 {
		return errors.New("error_log.upload_retries cannot be negative")
	}

	return nil
}
