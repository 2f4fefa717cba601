package pipeline

import (
	"gramhound/internal/registry"
)

// Outcome is one package's terminal pipeline result. Skip and failure
// reasons are carried as data rather than printed at the failure site.
type Outcome struct {
	Package   registry.PackageRef
	State     State
	Reason    string
	CorpusDir string
	Err       error
}

// Report aggregates a batch run. Outcomes arrive unordered.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Counts tallies outcomes per terminal state.
func (r *Report) Counts() map[State]int {
	counts := make(map[State]int)
	for _, o := range r.Outcomes {
		counts[o.State]++
	}
	return counts
}

// Retained lists the corpus directories left on disk for follow-up.
func (r *Report) Retained() []string {
	var dirs []string
	for _, o := range r.Outcomes {
		if (o.State == StateRetained || o.State == StateFailed) && o.CorpusDir != "" {
			dirs = append(dirs, o.CorpusDir)
		}
	}
	return dirs
}
