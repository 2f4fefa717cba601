package main

import (
	"github.com/spf13/cobra"

	"gramhound/internal/registry"
)

// runCmd drives the full pipeline: acquisition through retention in one
// batch, each package passing through every stage on a single worker.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download, extract and verify in one batch",
	RunE:  runFull,
}

func init() {
	runCmd.Flags().IntVarP(&downloadNumber, "number", "n", 100,
		"number of packages to process (max 4000)")
	runCmd.Flags().BoolVarP(&downloadAll, "all", "a", false,
		"process every package in the corpus list")
	runCmd.Flags().BoolVar(&downloadRM, "rm", false,
		"remove each package's metadata JSON after downloading")
	runCmd.Flags().CountVarP(&treeLevel, "tree", "t",
		"compare parse trees against reference .sexp files; repeat to log diffs")
	runCmd.Flags().StringVar(&grammarName, "grammar", "",
		"verifier grammar (default from config: python)")
}

func runFull(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	refs, err := registry.LoadTopPackages(cfg.CorpusListPath(), downloadNumber, downloadAll)
	if err != nil {
		return err
	}

	coord := newCoordinator(nil, downloadRM)
	report := coord.Run(ctx, refs)
	reportRetained(report)
	return nil
}
