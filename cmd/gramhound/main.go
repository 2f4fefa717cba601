// Package main implements the gramhound CLI, a batch harness that
// downloads ranked PyPI source distributions, parses every contained
// Python file against a grammar, and keeps only the corpora the grammar
// rejected.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gramhound/internal/config"
)

var (
	// Global flags
	verbose    bool
	dataDir    string
	configPath string
	processes  int

	// Logger
	logger *zap.Logger

	// Loaded configuration, available to every subcommand after PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gramhound",
	Short: "gramhound - PyPI corpus grammar-verification pipeline",
	Long: `gramhound builds a regression corpus from real-world parser failures.

It downloads the top PyPI packages' source distributions, extracts them into
a shared workspace, verifies every Python file against a tree-sitter grammar,
and deletes each extracted tree whose files all conform. Whatever is left on
disk after a run is the corpus of real-world inputs the grammar rejected.

Phases:
  download  - fetch metadata and source archives for the ranked package list
  verify    - extract and grammar-check every downloaded archive
  run       - both phases back to back`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if cmd.Root().PersistentFlags().Changed("processes") {
			cfg.Workers = processes
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "workspace directory (default \"data\")")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")
	rootCmd.PersistentFlags().IntVarP(&processes, "processes", "p", 1, "number of concurrent package workers")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(runCmd)
}

// signalContext returns a context cancelled on SIGINT/SIGTERM so a batch
// can be interrupted between stages.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
