package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Acquirer implements the acquisition stages for one package: metadata
// fetch, source-distribution lookup and archive download. All side
// effects land under DataDir: data/<name>.json for metadata and
// data/pypi/<filename> for archives. Stage sequencing belongs to the
// pipeline coordinator.
type Acquirer struct {
	Client     Client
	DataDir    string
	ArchiveDir string
	RemoveJSON bool
	Log        *zap.Logger
}

// NewAcquirer wires an Acquirer over the standard data layout.
func NewAcquirer(client Client, dataDir string, removeJSON bool, log *zap.Logger) *Acquirer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Acquirer{
		Client:     client,
		DataDir:    dataDir,
		ArchiveDir: filepath.Join(dataDir, "pypi"),
		RemoveJSON: removeJSON,
		Log:        log,
	}
}

// MetadataPath returns where a project's metadata document is persisted.
func (a *Acquirer) MetadataPath(name string) string {
	return filepath.Join(a.DataDir, name+".json")
}

// ArchivePath returns where a release file lands on disk.
func (a *Acquirer) ArchivePath(filename string) string {
	return filepath.Join(a.ArchiveDir, filename)
}

// FetchMetadata retrieves one project's metadata document, persists it to
// MetadataPath and parses it. Failures are returned, never logged and
// swallowed here; classifying them as a skip is the coordinator's job.
func (a *Acquirer) FetchMetadata(ctx context.Context, name string) (*ProjectMetadata, error) {
	raw, err := a.Client.ProjectJSON(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s: %w", name, err)
	}
	if err := os.MkdirAll(a.DataDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(a.MetadataPath(name), raw, 0o644); err != nil {
		return nil, fmt.Errorf("persisting metadata for %s: %w", name, err)
	}
	var meta ProjectMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", name, err)
	}
	return &meta, nil
}

// DownloadSource locates the source distribution in meta and downloads
// it, returning the on-disk archive path. ErrNoSourceDist marks metadata
// with no usable artifact; an archive already at the destination is
// treated as satisfied without a second fetch.
func (a *Acquirer) DownloadSource(ctx context.Context, ref PackageRef, meta *ProjectMetadata) (string, error) {
	src, ok := meta.SourceDist()
	if !ok {
		return "", fmt.Errorf("%s: %w", ref.Name, ErrNoSourceDist)
	}

	dest := a.ArchivePath(src.Filename)
	if _, err := os.Stat(dest); err == nil {
		a.Log.Info("archive already downloaded",
			zap.String("package", ref.Name), zap.String("archive", src.Filename))
		return dest, nil
	}
	if err := os.MkdirAll(a.ArchiveDir, 0o755); err != nil {
		return "", err
	}
	if err := a.Client.DownloadFile(ctx, src.URL, dest); err != nil {
		return "", fmt.Errorf("downloading %s: %w", src.Filename, err)
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("download of %s reported success but left no archive: %w", src.Filename, err)
	}
	a.Log.Info("archive downloaded",
		zap.String("package", ref.Name), zap.String("archive", src.Filename))
	return dest, nil
}

// RemoveMetadata deletes the persisted metadata document for ephemeral
// runs. Best effort: a removal failure is logged and never escalated.
func (a *Acquirer) RemoveMetadata(name string) {
	if err := os.Remove(a.MetadataPath(name)); err != nil && !os.IsNotExist(err) {
		a.Log.Warn("failed to remove metadata JSON",
			zap.String("package", name), zap.Error(err))
	}
}
