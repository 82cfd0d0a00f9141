package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"ats-sim/internal/config"
	"ats-sim/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ats-sim",
	Short:         "ATS train telemetry publisher",
	Long:          "ats-sim generates synthetic train telemetry and publishes it to Kafka, with replay of exported logs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration YAML")
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(replayCmd)
}

// loadConfig reads the file named by --config, then the environment, then
// lets override apply command flags before validating the result.
func loadConfig(override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.ResolveMode(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(cfg.Log.Format, cfg.Log.Level, os.Stderr)
}
