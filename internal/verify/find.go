package verify

import (
	"os"
	"path/filepath"
	"strings"
)

// FindCorpusDir locates the directory an archive unpacked into by scanning
// workspace for a directory whose name occurs in the archive filename
// (sdists typically unpack into a versioned directory that prefixes the
// archive name). ok is false for single-file packages that produced no
// directory at all.
func FindCorpusDir(workspace, archiveFilename string) (dir string, ok bool, err error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return "", false, err
	}
	base := filepath.Base(archiveFilename)
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "" {
			continue
		}
		if strings.Contains(base, e.Name()) {
			return filepath.Join(workspace, e.Name()), true, nil
		}
	}
	return "", false, nil
}
