package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mosaic/internal/config"
	"github.com/ShayCichocki/mosaic/internal/logging"
)

var (
	configPath string
	logLevel   string
	logFile    string
	verbose    bool
)

// Loaded by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mosaic",
	Short: "Multimodal response generator",
	Long: `Mosaic answers a request with a document that mixes prose, images
and diagrams.

A planning model splits the request into ordered parts. Each part is
optionally refined into a better prompt, generated by the backend for its
kind and placed back in order. A part that fails leaves a gap instead of
failing the whole response.

Configuration is read from ~/.config/mosaic/config.yaml, then .mosaic.yaml
in the current directory or a parent, then MOSAIC_* environment variables.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user and project config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Append JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	opts := logging.Options{Mode: cfg.Log.Mode, Level: cfg.Log.Level, File: cfg.Log.File}
	if logLevel != "" {
		opts.Level = logLevel
	}
	if verbose {
		opts.Level = "debug"
	}
	if logFile != "" {
		opts.File = logFile
	}
	logger, err = logging.New(opts)
	if err != nil {
		return fmt.Errorf("open logger: %w", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if logger != nil {
		return logger.Close()
	}
	return nil
}
