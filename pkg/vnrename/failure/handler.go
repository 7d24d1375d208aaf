package failure

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
)

// Undoer reverses a completed operation. undo.Service satisfies it;
// the indirection keeps rollback policy here without depending on the
// undo machinery directly.
type Undoer interface {
	Undo(operationID string) error
}

// Handler tracks per-file outcomes for in-flight operations, keyed by
// operation ID. One mutex guards the whole map; recategorization is
// proportional to the number of failures, not files, so holding it
// across categorize is fine. No filesystem I/O happens under the lock.
type Handler struct {
	mu      sync.Mutex
	reports map[string]*Report
	undoer  Undoer
	logger  zerolog.Logger
}

// NewHandler creates a handler. undoer may be nil, in which case the
// rollback strategy reports an error instead of rolling back.
func NewHandler(undoer Undoer, logger zerolog.Logger) *Handler {
	return &Handler{
		reports: make(map[string]*Report),
		undoer:  undoer,
		logger:  logger.With().Str("component", "failure").Logger(),
	}
}

// InitializeOperation opens a fresh report for an operation, replacing
// any stale one under the same ID.
func (h *Handler) InitializeOperation(operationID string, totalFiles int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reports[operationID] = &Report{
		OperationID: operationID,
		TotalFiles:  totalFiles,
	}
}

// RecordSuccess counts one successfully renamed file.
func (h *Handler) RecordSuccess(operationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.reports[operationID]; r != nil {
		r.SuccessfulOperations++
	}
}

// RecordFailure adds one failed file and recategorizes the report.
func (h *Handler) RecordFailure(operationID, filePath, targetPath string, ferr *core.FileSystemError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.reports[operationID]
	if r == nil {
		return
	}
	r.FailedOperations++
	r.FailedFiles = append(r.FailedFiles, FailedFileOperation{
		FilePath:                   filePath,
		TargetPath:                 targetPath,
		Err:                        ferr,
		MaxAttempts:                maxAttempts,
		RequiresManualIntervention: manualIntervention[ferr.Code],
	})
	categorize(r)
	h.logger.Warn().
		Str("operation_id", operationID).
		Str("path", filePath).
		Str("code", string(ferr.Code)).
		Str("recommended", string(r.RecommendedStrategy)).
		Msg("file operation failed")
}

// RecordSkip counts one deliberately skipped file.
func (h *Handler) RecordSkip(operationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r := h.reports[operationID]; r != nil {
		r.SkippedOperations++
	}
}

// Report returns a snapshot of the operation's report, or false if
// the operation is unknown.
func (h *Handler) Report(operationID string) (Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.reports[operationID]
	if r == nil {
		return Report{}, false
	}
	return r.snapshot(), true
}

// ShouldContinue decides whether the operation should keep processing
// files under the given strategy. Pure with respect to the current
// report state.
func (h *Handler) ShouldContinue(operationID string, strategy Strategy) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := h.reports[operationID]
	if r == nil {
		return true
	}
	switch strategy {
	case StrategyStopOnFirstError:
		return r.FailedOperations == 0
	case StrategyRollbackAll:
		return false
	default:
		return true
	}
}

// HandlePartialFailure applies a strategy to the operation's current
// failures. Retry returns the bounded list of transient failures worth
// re-dispatching, with their attempt counters advanced. Rollback
// defers to the undoer. Manual intervention only logs intent; acting
// on it is the caller's decision. Destructive strategies are never
// chosen here, only executed when explicitly requested.
func (h *Handler) HandlePartialFailure(operationID string, strategy Strategy) ([]FailedFileOperation, error) {
	h.mu.Lock()
	r := h.reports[operationID]
	if r == nil {
		h.mu.Unlock()
		return nil, fmt.Errorf("no failure report for operation %s", operationID)
	}

	switch strategy {
	case StrategyRetryFailed:
		var retry []FailedFileOperation
		for i := range r.FailedFiles {
			f := &r.FailedFiles[i]
			if f.ShouldAutoRetry() {
				f.AttemptCount++
				retry = append(retry, *f)
			}
		}
		h.mu.Unlock()
		h.logger.Info().
			Str("operation_id", operationID).
			Int("retryable", len(retry)).
			Msg("prepared retry list")
		return retry, nil

	case StrategyRollbackAll:
		h.mu.Unlock()
		if h.undoer == nil {
			return nil, fmt.Errorf("rollback requested for operation %s but no undo service is wired", operationID)
		}
		h.logger.Info().Str("operation_id", operationID).Msg("rolling back operation")
		return nil, h.undoer.Undo(operationID)

	case StrategyManualIntervention:
		n := len(r.ManualInterventionRequired)
		h.mu.Unlock()
		h.logger.Info().
			Str("operation_id", operationID).
			Int("files", n).
			Msg("manual intervention required; no automatic action taken")
		return nil, nil

	default:
		h.mu.Unlock()
		return nil, nil
	}
}

// Finalize drops the report for a finished operation.
func (h *Handler) Finalize(operationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.reports, operationID)
}
