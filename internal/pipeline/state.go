// Package pipeline coordinates the per-package verification pipeline:
// acquire, extract, verify, then retain or clean the extracted corpus.
// Packages fan out across a bounded worker pool and every recoverable
// error terminates only its own package.
package pipeline

// State is a package's position in the pipeline state machine.
//
// The happy path is Pending through Verified into Cleaned (corpus removed
// after a pass) or Retained (corpus kept for inspection after a failure).
// Skipped is reachable from any state on a recoverable error; Failed marks
// an unexpected verifier failure and always retains the corpus.
type State int

const (
	StatePending State = iota
	StateMetadataFetched
	StateArchiveFetched
	StateExtracted
	StateVerified
	StateRetained
	StateCleaned
	StateSkipped
	StateFailed
)

var stateNames = map[State]string{
	StatePending:         "pending",
	StateMetadataFetched: "metadata_fetched",
	StateArchiveFetched:  "archive_fetched",
	StateExtracted:       "extracted",
	StateVerified:        "verified",
	StateRetained:        "retained",
	StateCleaned:         "cleaned",
	StateSkipped:         "skipped",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the state ends a package's run.
func (s State) Terminal() bool {
	switch s {
	case StateRetained, StateCleaned, StateSkipped, StateFailed:
		return true
	}
	return false
}
