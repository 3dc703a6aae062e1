package main

import (
	"os"

	"github.com/spf13/cobra"

	"pocketpilot/internal/cli"
	"pocketpilot/internal/config"
	applog "pocketpilot/internal/log"
)

var (
	flagLogLevel string
	flagQuiet    bool
)

var rootCmd = &cobra.Command{
	Use:           "pocketpilot",
	Short:         "Personal budget assessments from the terminal",
	Long:          "Run the budget workflow locally, inspect its topology, and review recorded outcomes.",
	SilenceUsage:  true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cli.LoadEnvFile()

	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Override LOG_LEVEL for this run")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Only log errors")
}

// loadConfig reads the environment configuration with command line
// overrides applied. Logs go to stderr so rendered output stays clean.
func loadConfig() (*config.Config, *applog.Logger, error) {
	cfg := config.Load()
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagQuiet {
		cfg.LogLevel = "error"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger, err := cli.SetupLogger(cfg, applog.ComponentCLI, os.Stderr)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
