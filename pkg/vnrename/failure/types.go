// Package failure classifies per-file errors during a batch and
// recommends a recovery strategy. Reports are kept per operation and
// recategorized after every recorded failure, so the derived fields
// are never stale by more than one event.
package failure

import (
	"github.com/vnrename/vnrename/pkg/vnrename/core"
)

// Strategy is a recovery policy for a partially failed batch.
type Strategy string

const (
	StrategyStopOnFirstError   Strategy = "stop_on_first_error"
	StrategySkipAndContinue    Strategy = "skip_and_continue"
	StrategyRetryFailed        Strategy = "retry_failed"
	StrategyRollbackAll        Strategy = "rollback_all"
	StrategyManualIntervention Strategy = "manual_intervention"
)

// maxAttempts bounds automatic retries per file.
const maxAttempts = 3

// autoRetryable are the transient error codes worth retrying without
// a human in the loop.
var autoRetryable = map[core.ErrorCode]bool{
	core.CodeNetworkTimeout:         true,
	core.CodeDriveNotReady:          true,
	core.CodeConcurrentModification: true,
}

// manualIntervention are the error codes no retry will fix; a person
// has to change something first.
var manualIntervention = map[core.ErrorCode]bool{
	core.CodePermissionDenied:      true,
	core.CodeFileInUse:             true,
	core.CodeDuplicateNameConflict: true,
	core.CodeInvalidFilename:       true,
	core.CodePathTooLong:           true,
}

// FailedFileOperation is one file that could not be renamed, with its
// retry budget.
type FailedFileOperation struct {
	FilePath                   string
	TargetPath                 string
	Err                        *core.FileSystemError
	AttemptCount               int
	MaxAttempts                int
	RequiresManualIntervention bool
}

// ShouldAutoRetry reports whether this failure is transient and still
// has retry budget left.
func (f *FailedFileOperation) ShouldAutoRetry() bool {
	return autoRetryable[f.Err.Code] && f.AttemptCount < f.MaxAttempts
}

// Report is the running failure ledger for one operation. The derived
// partitions and recommendation are recomputed by categorize on every
// recorded failure.
type Report struct {
	OperationID                string
	TotalFiles                 int
	SuccessfulOperations       int
	FailedOperations           int
	SkippedOperations          int
	FailedFiles                []FailedFileOperation
	CriticalErrors             []FailedFileOperation
	RecoverableErrors          []FailedFileOperation
	ManualInterventionRequired []FailedFileOperation
	AvailableStrategies        []Strategy
	RecommendedStrategy        Strategy
}

// SuccessRate is the fraction of attempted files that succeeded.
func (r *Report) SuccessRate() float64 {
	attempted := r.SuccessfulOperations + r.FailedOperations
	if attempted == 0 {
		return 1
	}
	return float64(r.SuccessfulOperations) / float64(attempted)
}

// categorize rebuilds the derived fields from the recorded failures.
// Pure with respect to the raw counters and failure list; calling it
// twice on the same input yields the same partitions.
func categorize(r *Report) {
	r.CriticalErrors = nil
	r.RecoverableErrors = nil
	r.ManualInterventionRequired = nil

	for _, f := range r.FailedFiles {
		switch {
		case f.Err.Severity == core.SeverityCritical:
			r.CriticalErrors = append(r.CriticalErrors, f)
		case manualIntervention[f.Err.Code]:
			r.ManualInterventionRequired = append(r.ManualInterventionRequired, f)
		default:
			r.RecoverableErrors = append(r.RecoverableErrors, f)
		}
	}

	r.AvailableStrategies = []Strategy{StrategySkipAndContinue, StrategyStopOnFirstError}
	if len(r.RecoverableErrors) > 0 {
		r.AvailableStrategies = append(r.AvailableStrategies, StrategyRetryFailed)
	}
	if len(r.ManualInterventionRequired) > 0 {
		r.AvailableStrategies = append(r.AvailableStrategies, StrategyManualIntervention)
	}
	if r.SuccessfulOperations > 0 {
		r.AvailableStrategies = append(r.AvailableStrategies, StrategyRollbackAll)
	}

	switch {
	case len(r.CriticalErrors) > 0:
		r.RecommendedStrategy = StrategyRollbackAll
	case r.SuccessRate() < 0.30:
		r.RecommendedStrategy = StrategyStopOnFirstError
	case len(r.RecoverableErrors) > len(r.ManualInterventionRequired):
		r.RecommendedStrategy = StrategyRetryFailed
	default:
		r.RecommendedStrategy = StrategySkipAndContinue
	}
}

// snapshot deep-copies the report so callers never observe the live
// instance mid-update.
func (r *Report) snapshot() Report {
	cp := *r
	cp.FailedFiles = append([]FailedFileOperation(nil), r.FailedFiles...)
	cp.CriticalErrors = append([]FailedFileOperation(nil), r.CriticalErrors...)
	cp.RecoverableErrors = append([]FailedFileOperation(nil), r.RecoverableErrors...)
	cp.ManualInterventionRequired = append([]FailedFileOperation(nil), r.ManualInterventionRequired...)
	cp.AvailableStrategies = append([]Strategy(nil), r.AvailableStrategies...)
	return cp
}
