package core

import "time"

// OperationStatus tracks the lifecycle of a forward batch operation.
// Transitions are monotonic except Running -> Cancelling -> Cancelled;
// Cancelled, Completed and Failed are terminal.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusRunning    OperationStatus = "running"
	StatusCancelling OperationStatus = "cancelling"
	StatusCancelled  OperationStatus = "cancelled"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusFailed
}

// ProgressFunc receives progress updates as a 0-100 percentage and a
// label for the file currently being processed. Implementations must
// not block for long; slow consumers cause updates to be dropped, never
// the worker to stall.
type ProgressFunc func(percentage float64, currentFile string)

// FileOperationResult records the outcome of a single file rename.
// Created once per file and never mutated afterwards.
type FileOperationResult struct {
	Path         string        `json:"path"`
	OriginalName string        `json:"original_name"`
	NewName      string        `json:"new_name"`
	Success      bool          `json:"success"`
	Skipped      bool          `json:"skipped"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// OperationResult aggregates the outcome of one batch operation.
// The owning service mutates it for the duration of the run; everything
// handed to callbacks is a snapshot.
type OperationResult struct {
	OperationID  string
	Status       OperationStatus
	DryRun       bool
	SourceDir    string
	TotalFiles   int
	SuccessCount int
	ErrorCount   int
	SkippedCount int
	StartedAt    time.Time
	EndedAt      time.Time
	ErrorMessage string
	FileResults  []FileOperationResult
}

// NewOperationResult creates a pending result for the given operation.
func NewOperationResult(operationID, sourceDir string, totalFiles int, dryRun bool) *OperationResult {
	return &OperationResult{
		OperationID: operationID,
		Status:      StatusPending,
		DryRun:      dryRun,
		SourceDir:   sourceDir,
		TotalFiles:  totalFiles,
		StartedAt:   time.Now(),
	}
}

// RecordFile appends a per-file result and updates the counters.
func (r *OperationResult) RecordFile(fr FileOperationResult) {
	r.FileResults = append(r.FileResults, fr)
	switch {
	case fr.Skipped:
		r.SkippedCount++
	case fr.Success:
		r.SuccessCount++
	default:
		r.ErrorCount++
	}
}

// MarkCompleted moves the result to its terminal Completed state.
func (r *OperationResult) MarkCompleted() {
	r.Status = StatusCompleted
	r.EndedAt = time.Now()
}

// MarkFailed moves the result to its terminal Failed state.
func (r *OperationResult) MarkFailed(msg string) {
	r.Status = StatusFailed
	r.ErrorMessage = msg
	r.EndedAt = time.Now()
}

// MarkCancelled moves the result to its terminal Cancelled state,
// keeping the partial counts accumulated so far.
func (r *OperationResult) MarkCancelled(reason string) {
	r.Status = StatusCancelled
	r.ErrorMessage = reason
	r.EndedAt = time.Now()
}

// Duration returns the wall-clock time of the operation so far.
func (r *OperationResult) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Snapshot returns a deep copy safe to hand across goroutines.
func (r *OperationResult) Snapshot() OperationResult {
	cp := *r
	cp.FileResults = make([]FileOperationResult, len(r.FileResults))
	copy(cp.FileResults, r.FileResults)
	return cp
}
