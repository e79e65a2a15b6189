// Package config handles configuration management for salesdw.
// Configuration is loaded from a config file, then DATABASE_URL, then CLI
// flags, each overriding the previous.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/viper"

	"salesdw/internal/normalize"
	"salesdw/internal/staging"
	"salesdw/internal/storage"
)

// Backends are the storage kinds the binary ships with.
var Backends = []string{"postgres", "sqlite", "mssql"}

// Config holds all configuration for salesdw.
type Config struct {
	// Connection is the target connection string (DSN or URL).
	Connection string `mapstructure:"connection"`

	// Storage selects the backend: postgres, sqlite or mssql.
	Storage string `mapstructure:"storage"`

	// StagingTable is the unqualified staging table name in schema "staging".
	StagingTable string `mapstructure:"staging_table"`

	// MergePolicy resolves conflicting entity attributes: max-wins or last-wins.
	MergePolicy string `mapstructure:"merge_policy"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogPretty selects the human-readable console writer over JSON lines.
	LogPretty bool `mapstructure:"log_pretty"`

	Metrics MetricsConfig `mapstructure:"metrics"`

	Ingest IngestConfig `mapstructure:"ingest"`
}

// MetricsConfig holds metrics backend settings.
type MetricsConfig struct {
	// Backend is "none" or "datadog".
	Backend string `mapstructure:"backend"`

	// Job becomes the job:<name> tag.
	Job string `mapstructure:"job"`

	// Tags is a comma-separated list such as "env:prod,team:data".
	Tags string `mapstructure:"tags"`

	// FlushEvery is the periodic submission interval.
	FlushEvery time.Duration `mapstructure:"flush_every"`
}

// IngestConfig holds staging ingest settings.
type IngestConfig struct {
	// Format is "csv" or "html".
	Format string `mapstructure:"format"`

	// Encoding of the input file (utf-8, windows-1252, latin1).
	Encoding string `mapstructure:"encoding"`

	// BatchSize is the number of rows per staging insert.
	BatchSize int `mapstructure:"batch_size"`

	// HTMLSelector picks the table of an HTML export.
	HTMLSelector string `mapstructure:"html_selector"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Storage:      "postgres",
		StagingTable: storage.DefaultStagingTable,
		MergePolicy:  normalize.MaxWins.String(),
		LogLevel:     "info",
		LogPretty:    true,
		Metrics: MetricsConfig{
			Backend:    "none",
			Job:        "salesdw",
			FlushEvery: time.Minute,
		},
		Ingest: IngestConfig{
			Format:       "csv",
			Encoding:     "utf-8",
			BatchSize:    staging.DefaultBatchSize,
			HTMLSelector: staging.DefaultHTMLSelector,
		},
	}
}

// Load reads configuration from config files and the environment.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./salesdw.yaml
// 3. ~/.config/salesdw/salesdw.yaml
//
// DATABASE_URL, when set, provides the connection string.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("salesdw")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "salesdw"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.BindEnv("connection", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings every command needs. It runs before any
// connection is opened.
func (c *Config) Validate() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required (set connection, DATABASE_URL or --connection)")
	}
	if !slices.Contains(Backends, c.Storage) {
		return fmt.Errorf("storage must be one of %v, got %q", Backends, c.Storage)
	}
	if _, err := storage.StagingTableName(c.StagingTable); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	switch c.Metrics.Backend {
	case "", "none", "datadog":
	default:
		return fmt.Errorf("metrics.backend must be 'none' or 'datadog', got %q", c.Metrics.Backend)
	}
	return nil
}

// ValidateIngest additionally checks the ingest settings.
func (c *Config) ValidateIngest() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch c.Ingest.Format {
	case staging.FormatCSV, staging.FormatHTML, staging.FormatAuto:
	default:
		return fmt.Errorf("ingest.format must be 'csv', 'html' or 'auto', got %q", c.Ingest.Format)
	}
	if err := staging.ValidateEncoding(c.Ingest.Encoding); err != nil {
		return err
	}
	if c.Ingest.BatchSize < 1 {
		return fmt.Errorf("ingest.batch_size must be at least 1")
	}
	return nil
}

// Policy parses MergePolicy.
func (c *Config) Policy() (normalize.MergePolicy, error) {
	return normalize.ParseMergePolicy(c.MergePolicy)
}

// StorageConfig returns the repository settings.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{Kind: c.Storage, DSN: c.Connection}
}
