package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gramhound/internal/archive"
	"gramhound/internal/registry"
	"gramhound/internal/verify"
)

// CorpusVerifier is the verification adapter boundary. Implemented by
// *verify.Verifier; tests substitute failing or panicking stands-ins.
type CorpusVerifier interface {
	Verify(ctx context.Context, root string, opts verify.Options) (verify.Result, error)
}

// Coordinator drives packages through acquire, extract, verify and
// retention across a bounded pool of workers.
type Coordinator struct {
	Acquirer  *registry.Acquirer
	Verifier  CorpusVerifier
	Workspace string
	Exclude   []string
	TreeLevel int
	Workers   int
	Log       *zap.Logger
}

// NewCoordinator wires a coordinator; workers below one are clamped to the
// sequential default.
func NewCoordinator(acq *registry.Acquirer, ver CorpusVerifier, workspace string, workers int, log *zap.Logger) *Coordinator {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		Acquirer:  acq,
		Verifier:  ver,
		Workspace: workspace,
		Exclude:   verify.DefaultExclusions,
		Workers:   workers,
		Log:       log,
	}
}

// Run fans refs out across the worker pool and collects outcomes
// unordered. The batch always runs to completion: a package's error or
// panic terminates only that package.
func (c *Coordinator) Run(ctx context.Context, refs []registry.PackageRef) Report {
	report := Report{RunID: uuid.NewString()}
	log := c.Log.With(zap.String("run_id", report.RunID))
	log.Info("starting batch", zap.Int("packages", len(refs)), zap.Int("workers", c.Workers))

	results := make(chan Outcome)
	g := &errgroup.Group{}
	g.SetLimit(c.Workers)

	go func() {
		for _, ref := range refs {
			ref := ref
			g.Go(func() error {
				results <- c.runOne(ctx, ref)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for outcome := range results {
		c.logOutcome(log, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}

	counts := report.Counts()
	log.Info("batch finished",
		zap.Int("cleaned", counts[StateCleaned]),
		zap.Int("retained", counts[StateRetained]),
		zap.Int("skipped", counts[StateSkipped]),
		zap.Int("failed", counts[StateFailed]))
	return report
}

// runOne walks one package through the pipeline. A panic anywhere in the
// stages becomes a Failed outcome so one bad package can never take down
// the pool.
func (c *Coordinator) runOne(ctx context.Context, ref registry.PackageRef) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Package: ref,
				State:   StateFailed,
				Reason:  "panic during pipeline run",
				Err:     fmt.Errorf("package %s: panic: %v", ref.Name, r),
			}
		}
	}()

	archivePath, err := c.acquire(ctx, ref)
	if err != nil {
		reason := "metadata or archive fetch failed"
		if errors.Is(err, registry.ErrNoSourceDist) {
			reason = "no source distribution"
		}
		return Outcome{Package: ref, State: StateSkipped, Reason: reason, Err: err}
	}
	return c.verifyArchive(ctx, ref, archivePath)
}

// acquire sequences the acquisition stages for one package. The --rm
// cleanup runs whether the download succeeded or not, matching the
// ephemeral-metadata contract.
func (c *Coordinator) acquire(ctx context.Context, ref registry.PackageRef) (string, error) {
	c.logState(ref, StatePending)
	meta, err := c.Acquirer.FetchMetadata(ctx, ref.Name)
	if c.Acquirer.RemoveJSON {
		defer c.Acquirer.RemoveMetadata(ref.Name)
	}
	if err != nil {
		return "", err
	}
	c.logState(ref, StateMetadataFetched)

	path, err := c.Acquirer.DownloadSource(ctx, ref, meta)
	if err != nil {
		return "", err
	}
	c.logState(ref, StateArchiveFetched)
	return path, nil
}

// logState records a non-terminal transition; terminal states arrive via
// logOutcome.
func (c *Coordinator) logState(ref registry.PackageRef, s State) {
	c.Log.Debug("pipeline state",
		zap.String("package", ref.Name), zap.String("state", s.String()))
}

// verifyArchive runs extract, verify and retention for an archive already
// on disk. It is the whole pipeline for the verify-only phase, where refs
// come from scanning the workspace instead of the registry.
func (c *Coordinator) verifyArchive(ctx context.Context, ref registry.PackageRef, archivePath string) Outcome {
	if err := archive.Extract(archivePath, c.Workspace); err != nil {
		reason := "extraction failed"
		if errors.Is(err, archive.ErrUnrecognizedFormat) {
			reason = "unrecognized archive format"
		}
		return Outcome{Package: ref, State: StateSkipped, Reason: reason, Err: err}
	}
	c.logState(ref, StateExtracted)

	corpusDir, found, err := verify.FindCorpusDir(c.Workspace, archivePath)
	if err != nil {
		return Outcome{Package: ref, State: StateSkipped, Reason: "workspace scan failed", Err: err}
	}
	if !found {
		// Nothing to verify and nothing to clean up.
		return Outcome{Package: ref, State: StateCleaned, Reason: "single-file package"}
	}

	result, err := c.runVerifier(ctx, corpusDir)
	if err != nil {
		// Unexpected verifier failure: record as failed, keep the corpus.
		return Outcome{
			Package:   ref,
			State:     StateFailed,
			Reason:    "verifier error",
			CorpusDir: corpusDir,
			Err:       err,
		}
	}
	c.logState(ref, StateVerified)
	return c.applyRetention(ref, corpusDir, result)
}

// runVerifier invokes the verification adapter, converting panics into
// errors at this boundary.
func (c *Coordinator) runVerifier(ctx context.Context, corpusDir string) (result verify.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = verify.Result{Status: 1}
			err = fmt.Errorf("verifier panic on %s: %v", corpusDir, r)
		}
	}()
	return c.Verifier.Verify(ctx, corpusDir, verify.Options{
		Exclude:   c.Exclude,
		TreeLevel: c.TreeLevel,
	})
}

// applyRetention deletes the corpus on a pass and keeps it on any other
// status. A removal failure is logged and swallowed; it never fails the
// batch.
func (c *Coordinator) applyRetention(ref registry.PackageRef, corpusDir string, result verify.Result) Outcome {
	if result.Status != 0 {
		return Outcome{
			Package:   ref,
			State:     StateRetained,
			Reason:    fmt.Sprintf("%d files failed verification", len(result.Failed())),
			CorpusDir: corpusDir,
		}
	}
	if err := os.RemoveAll(corpusDir); err != nil {
		c.Log.Warn("failed to remove verified corpus",
			zap.String("package", ref.Name), zap.String("dir", corpusDir), zap.Error(err))
	}
	return Outcome{Package: ref, State: StateCleaned}
}

// RunDownloadOnly fans the acquisition stage out over refs without
// extracting or verifying anything, leaving archives in the workspace for
// a later verification batch.
func (c *Coordinator) RunDownloadOnly(ctx context.Context, refs []registry.PackageRef) Report {
	report := Report{RunID: uuid.NewString()}
	log := c.Log.With(zap.String("run_id", report.RunID))
	log.Info("starting download batch", zap.Int("packages", len(refs)), zap.Int("workers", c.Workers))

	results := make(chan Outcome)
	g := &errgroup.Group{}
	g.SetLimit(c.Workers)

	go func() {
		for _, ref := range refs {
			ref := ref
			g.Go(func() error {
				results <- c.downloadOne(ctx, ref)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for outcome := range results {
		c.logOutcome(log, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func (c *Coordinator) downloadOne(ctx context.Context, ref registry.PackageRef) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Package: ref,
				State:   StateFailed,
				Reason:  "panic during download",
				Err:     fmt.Errorf("package %s: panic: %v", ref.Name, r),
			}
		}
	}()
	if _, err := c.acquire(ctx, ref); err != nil {
		reason := "metadata or archive fetch failed"
		if errors.Is(err, registry.ErrNoSourceDist) {
			reason = "no source distribution"
		}
		return Outcome{Package: ref, State: StateSkipped, Reason: reason, Err: err}
	}
	return Outcome{Package: ref, State: StateArchiveFetched}
}

// ScanArchives lists the downloaded archives in the workspace for the
// verify-only phase, in the formats the codec recognizes.
func ScanArchives(workspace string) ([]string, error) {
	var paths []string
	for _, pattern := range []string{"*.tar.gz", "*.tgz", "*.zip"} {
		matches, err := filepath.Glob(filepath.Join(workspace, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// RunVerifyOnly drives extract, verify and retention over every archive
// already sitting in the workspace, without touching the registry.
func (c *Coordinator) RunVerifyOnly(ctx context.Context) (Report, error) {
	paths, err := ScanArchives(c.Workspace)
	if err != nil {
		return Report{}, err
	}

	report := Report{RunID: uuid.NewString()}
	log := c.Log.With(zap.String("run_id", report.RunID))
	log.Info("starting verification batch", zap.Int("archives", len(paths)), zap.Int("workers", c.Workers))

	results := make(chan Outcome)
	g := &errgroup.Group{}
	g.SetLimit(c.Workers)

	go func() {
		for i, path := range paths {
			path := path
			ref := registry.PackageRef{Name: filepath.Base(path), Rank: i}
			g.Go(func() error {
				results <- c.safeVerifyArchive(ctx, ref, path)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()

	for outcome := range results {
		c.logOutcome(log, outcome)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

func (c *Coordinator) safeVerifyArchive(ctx context.Context, ref registry.PackageRef, path string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = Outcome{
				Package: ref,
				State:   StateFailed,
				Reason:  "panic during pipeline run",
				Err:     fmt.Errorf("archive %s: panic: %v", path, r),
			}
		}
	}()
	return c.verifyArchive(ctx, ref, path)
}

func (c *Coordinator) logOutcome(log *zap.Logger, o Outcome) {
	fields := []zap.Field{
		zap.String("package", o.Package.Name),
		zap.String("state", o.State.String()),
	}
	if o.Reason != "" {
		fields = append(fields, zap.String("reason", o.Reason))
	}
	if o.CorpusDir != "" {
		fields = append(fields, zap.String("corpus_dir", o.CorpusDir))
	}
	switch o.State {
	case StateFailed:
		log.Error("package failed", append(fields, zap.Error(o.Err))...)
	case StateSkipped:
		log.Warn("package skipped", append(fields, zap.Error(o.Err))...)
	case StateRetained:
		log.Warn("corpus retained for inspection", fields...)
	case StateArchiveFetched:
		log.Info("archive fetched", fields...)
	default:
		log.Info("package verified", fields...)
	}
}
