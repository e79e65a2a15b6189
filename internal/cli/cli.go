// Package cli implements the command-line interface for salesdw.
package cli

import (
	"github.com/spf13/cobra"

	"salesdw/internal/config"
	"salesdw/internal/logging"
)

// Version is stamped at build time with -ldflags "-X salesdw/internal/cli.Version=...".
var Version = "dev"

var (
	// Global flags
	cfgFile        string
	connection     string
	storageKind    string
	stagingTable   string
	mergePolicy    string
	logLevel       string
	metricsBackend string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "salesdw",
		Short: "Sales ETL from a flat staging table into OLTP and star schemas",
		Long: `salesdw lands raw sales records in a staging table, normalizes them
into customer, product, order and order-line tables, and rebuilds a star
schema (customer, product, ship mode and date dimensions plus a sales fact)
from the normalized data.

Typical use:
  salesdw run --file superstore.csv --connection "postgres://..."`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./salesdw.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"database connection string (default: $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&storageKind, "storage", "",
		"storage backend (postgres, sqlite, mssql)")
	rootCmd.PersistentFlags().StringVar(&stagingTable, "staging-table", "",
		"staging table name inside schema staging (default: sales_raw)")
	rootCmd.PersistentFlags().StringVar(&mergePolicy, "merge-policy", "",
		"attribute merge policy for duplicate keys (max-wins, last-wins)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsBackend, "metrics-backend", "",
		"metrics backend (none, datadog)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if storageKind != "" {
		cfg.Storage = storageKind
	}
	if stagingTable != "" {
		cfg.StagingTable = stagingTable
	}
	if mergePolicy != "" {
		cfg.MergePolicy = mergePolicy
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if metricsBackend != "" {
		cfg.Metrics.Backend = metricsBackend
	}

	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("salesdw " + Version)
	},
}
