// Package cmd provides the command-line interface of the granule migration tool.
package cmd

import (
	"errors"
	"fmt"
	"granulemigration/internal/application/common/logging"
	"granulemigration/internal/application/common/slogger"
	"granulemigration/internal/config"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix prefixes every environment variable override, e.g.
// GRANMIG_DATABASE_HOST or GRANMIG_ERROR_LOG_BUCKET.
const envPrefix = "GRANMIG"

//nolint:gochecknoglobals // Standard Cobra CLI state.
var (
	cfgFile string
	cfg     *config.Config
	v       = viper.New()
)

//nolint:gochecknoglobals // Standard Cobra CLI pattern.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "granulemigration",
		Short: "Migrate granules and files into the relational store",
		Long: `granulemigration copies granule records and their embedded files from the
schemaless key-value store into the relational store.

A run either scans the whole source table in parallel segments or, when a
granule or collection id is given, migrates only the matching records.
Records already present with an equal or newer updatedAt are skipped, so a
run can be repeated safely.`,
		SilenceUsage: true,
	}
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() { //nolint:gochecknoinits // Standard Cobra CLI pattern for command registration
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "Log format (json, text)")

	bindFlag(rootCmd, "log.level", "log-level")
	bindFlag(rootCmd, "log.format", "log-format")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	f := cmd.PersistentFlags().Lookup(flag)
	if f == nil {
		f = cmd.Flags().Lookup(flag)
	}
	if err := v.BindPFlag(key, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
	}
}

func initConfig() {
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	}

	if err := slogger.Configure(logging.Config{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
		Output: "stderr",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logger: %v\n", err)
	}
}

// loadConfig returns the validated configuration, loading it on first use.
func loadConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}
	loaded, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	cfg = loaded
	return cfg, nil
}
