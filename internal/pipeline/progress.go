package pipeline

// Progress is one phase-transition report emitted during an index run.
// CurrentFile is empty outside the "indexing files" phase.
type Progress struct {
	Phase       string
	Percentage  int
	CurrentFile string
}

// Phase names, used verbatim by both FullIndex and ReindexByChange.
const (
	PhasePreparing     = "preparing"
	PhaseScanning      = "scanning"
	PhaseIndexingFiles = "indexing files"
	PhaseCompleted     = "completed"
	PhaseNoChanges     = "no changes"
)

// ProgressFunc receives progress reports. A nil ProgressFunc is valid and
// silently discards reports.
type ProgressFunc func(Progress)

func report(fn ProgressFunc, phase string, pct int, currentFile string) {
	if fn == nil {
		return
	}
	fn(Progress{Phase: phase, Percentage: pct, CurrentFile: currentFile})
}
