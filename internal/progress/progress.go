// Package progress defines the callback contract used to report pipeline
// progress to callers. Rendering (progress bars, spinners) is a presentation
// concern owned by whoever supplies the callback.
package progress

// Stage identifies which phase of a pipeline a report belongs to.
type Stage string

const (
	StageProcessing Stage = "processing"
	StageSaving     Stage = "saving"
	StageGenerating Stage = "generating"
	StageSearching  Stage = "searching"
)

// Func receives progress updates as (processed, total, stage). A nil Func is
// a safe no-op; call it through Report.
type Func func(processed, total int, stage Stage)

// Report invokes f if it is non-nil.
func (f Func) Report(processed, total int, stage Stage) {
	if f != nil {
		f(processed, total, stage)
	}
}
