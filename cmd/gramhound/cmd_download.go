package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gramhound/internal/pipeline"
	"gramhound/internal/registry"
)

var (
	downloadNumber int
	downloadAll    bool
	downloadRM     bool
)

// downloadCmd runs the acquisition phase on its own.
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download source distributions for the ranked package list",
	Long: `Download fetches each package's metadata document from the registry,
picks its source distribution, and saves the archive under data/pypi/.
Packages without a source distribution are skipped; archives already on
disk are never refetched.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().IntVarP(&downloadNumber, "number", "n", 100,
		fmt.Sprintf("number of packages to download (max %d)", registry.MaxPackageLimit))
	downloadCmd.Flags().BoolVarP(&downloadAll, "all", "a", false,
		"download every package in the corpus list")
	downloadCmd.Flags().BoolVar(&downloadRM, "rm", false,
		"remove each package's metadata JSON after downloading")
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	refs, err := registry.LoadTopPackages(cfg.CorpusListPath(), downloadNumber, downloadAll)
	if err != nil {
		return err
	}

	coord := newCoordinator(nil, downloadRM)
	report := coord.RunDownloadOnly(ctx, refs)

	counts := report.Counts()
	logger.Info("download phase finished",
		zap.String("run_id", report.RunID),
		zap.Int("fetched", counts[pipeline.StateArchiveFetched]),
		zap.Int("skipped", counts[pipeline.StateSkipped]))
	return nil
}
