// Package main provides the entry point for the LadyBug issue triage bot.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ladybugml/ladybug-bot/internal/config"
)

var (
	configPath string
	verbose    bool

	// cfg is the merged configuration: config file, then environment, then defaults.
	cfg config.Config

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "ladybug",
	Short: "LadyBug issue triage bot",
	Long: `LadyBug reads GUI execution traces attached to bug reports, validates them
and asks the localization backend to rank the files most likely to contain the bug.`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		l, err := newLogger(cfg.Verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.json file (environment and defaults fill the rest)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

// loadConfig merges the config file, the environment and the defaults in
// that order of precedence.
func loadConfig() (config.Config, error) {
	var fileCfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		fileCfg = *loaded
	}

	merged := fileCfg.MergeWithDefaults(config.FromEnv())
	merged = merged.MergeWithDefaults(config.Defaults())
	merged.Verbose = merged.Verbose || verbose
	return merged, nil
}

// newLogger builds a JSON production logger, or a debug-level one in verbose mode.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
