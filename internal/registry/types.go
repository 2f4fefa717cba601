// Package registry implements the acquisition side of the corpus pipeline:
// fetching package metadata from the PyPI JSON API and downloading source
// distribution archives into the shared data workspace.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoSourceDist is reported when a project's metadata lists no artifact
// classified as a source distribution.
var ErrNoSourceDist = errors.New("no source distribution listed")

// PackageRef identifies one unit of work in the corpus run.
// Rank is the package's position in the priority-ordered input list.
type PackageRef struct {
	Name string
	Rank int
}

// ReleaseFile is one distributable artifact in a project's metadata.
// PythonVersion doubles as the artifact classifier: the value "source"
// marks a source distribution, anything else is a wheel or binary build.
type ReleaseFile struct {
	PythonVersion string `json:"python_version"`
	Filename      string `json:"filename"`
	URL           string `json:"url"`
}

// ProjectMetadata is the registry-supplied description of one project.
type ProjectMetadata struct {
	URLs []ReleaseFile `json:"urls"`
}

// SourceDist returns the first release file classified as a source
// distribution, or false when none is listed.
func (m *ProjectMetadata) SourceDist() (ReleaseFile, bool) {
	for _, rf := range m.URLs {
		if rf.PythonVersion == "source" {
			return rf, true
		}
	}
	return ReleaseFile{}, false
}

// topListDocument mirrors the top-packages corpus list shape:
// {"rows": [{"project": "...", "download_count": ...}, ...]}
type topListDocument struct {
	Rows []struct {
		Project string `json:"project"`
	} `json:"rows"`
}

// MaxPackageLimit bounds the -n/--number flag for partial runs.
const MaxPackageLimit = 4000

// LoadTopPackages reads the priority-ordered corpus list from path.
// When all is false, limit must be in [0, MaxPackageLimit] and the list is
// truncated to the first limit entries.
func LoadTopPackages(path string, limit int, all bool) ([]PackageRef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corpus list: %w", err)
	}
	var doc topListDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing corpus list %s: %w", path, err)
	}

	refs := make([]PackageRef, 0, len(doc.Rows))
	for i, row := range doc.Rows {
		refs = append(refs, PackageRef{Name: row.Project, Rank: i})
	}
	if all {
		return refs, nil
	}
	if limit < 0 || limit > MaxPackageLimit {
		return nil, fmt.Errorf("package limit %d out of range [0, %d]", limit, MaxPackageLimit)
	}
	if limit < len(refs) {
		refs = refs[:limit]
	}
	return refs, nil
}
