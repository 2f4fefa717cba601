package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gramhound/internal/pipeline"
	"gramhound/internal/registry"
	"gramhound/internal/verify"
)

var (
	treeLevel   int
	grammarName string
)

// verifyCmd runs the verification phase over archives already downloaded.
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Extract and grammar-check every downloaded archive",
	Long: `Verify extracts each archive in data/pypi/ into the shared workspace,
parses every Python file in the extracted tree against the configured
grammar, and deletes trees whose files all conform. Trees with failures
stay on disk for manual inspection.`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().CountVarP(&treeLevel, "tree", "t",
		"compare parse trees against reference .sexp files; repeat to log diffs")
	verifyCmd.Flags().StringVar(&grammarName, "grammar", "",
		"verifier grammar (default from config: python)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	coord := newCoordinator(nil, false)
	report, err := coord.RunVerifyOnly(ctx)
	if err != nil {
		return err
	}
	reportRetained(report)
	return nil
}

// newCoordinator builds the shared pipeline coordinator for all phases.
// The grammar handle is loaded once here and shared by every worker.
func newCoordinator(client registry.Client, removeJSON bool) *pipeline.Coordinator {
	if client == nil {
		httpClient := registry.NewHTTPClient(cfg.Timeout())
		httpClient.BaseURL = cfg.RegistryBaseURL
		client = httpClient
	}
	acq := registry.NewAcquirer(client, cfg.DataDir, removeJSON, logger)

	if grammarName != "" {
		cfg.Grammar = grammarName
	}
	grammar, err := verify.LoadGrammar(cfg.Grammar)
	if err != nil {
		logger.Fatal("failed to load grammar", zap.String("grammar", cfg.Grammar), zap.Error(err))
	}
	verifier := verify.NewVerifier(grammar, logger)

	coord := pipeline.NewCoordinator(acq, verifier, cfg.WorkspaceDir(), cfg.Workers, logger)
	coord.TreeLevel = treeLevel

	excludePath := cfg.ExcludeFile
	if excludePath == "" {
		excludePath = filepath.Join(cfg.DataDir, "exclude.yaml")
	}
	exclude, err := verify.LoadExclusions(excludePath)
	if err != nil {
		logger.Fatal("failed to load exclusion rules", zap.String("file", excludePath), zap.Error(err))
	}
	coord.Exclude = exclude
	return coord
}

// reportRetained logs the directories left on disk; they are the run's
// durable output. Partial failure never changes the exit code.
func reportRetained(report pipeline.Report) {
	counts := report.Counts()
	logger.Info("verification phase finished",
		zap.String("run_id", report.RunID),
		zap.Int("cleaned", counts[pipeline.StateCleaned]),
		zap.Int("retained", counts[pipeline.StateRetained]),
		zap.Int("skipped", counts[pipeline.StateSkipped]),
		zap.Int("failed", counts[pipeline.StateFailed]))
	for _, dir := range report.Retained() {
		logger.Warn("corpus needs attention", zap.String("dir", dir))
	}
}
