package verify

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// DefaultExclusions skips fixture files that are failing on purpose:
// curated fail sets, two-to-three migration fixtures, and files already
// marked bad.
var DefaultExclusions = []string{
	"**/failset/**",
	"**/test2to3/**",
	"**/bad*",
	"**/bad*/**",
	"**/lib2to3/tests/data/**",
}

type exclusionFile struct {
	Exclude []string `yaml:"exclude"`
}

// LoadExclusions reads an exclusion-rule file. The file replaces the
// defaults wholesale; a missing path returns the defaults.
func LoadExclusions(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultExclusions, nil
		}
		return nil, err
	}
	var doc exclusionFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing exclusion file %s: %w", path, err)
	}
	if len(doc.Exclude) == 0 {
		return DefaultExclusions, nil
	}
	for _, pat := range doc.Exclude {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclusion pattern %q in %s", pat, path)
		}
	}
	return doc.Exclude, nil
}

// excluded reports whether the slash-separated relative path matches any
// exclusion glob.
func excluded(patterns []string, slashPath string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, slashPath); err == nil && ok {
			return true
		}
	}
	return false
}
