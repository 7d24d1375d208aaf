// Package undo reverses a completed batch rename. Eligibility is
// recomputed from live filesystem state, restoration runs as a
// two-phase rename sequence that rolls back on any failure, and each
// attempt is persisted to history.
package undo

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/vnrename/vnrename/pkg/vnrename/history"
)

// ExecutionStatus tracks an undo attempt through its state machine.
type ExecutionStatus string

const (
	StatusNotStarted ExecutionStatus = "not_started"
	StatusValidating ExecutionStatus = "validating"
	StatusPreparing  ExecutionStatus = "preparing"
	StatusExecuting  ExecutionStatus = "executing"
	StatusCompleted  ExecutionStatus = "completed"
	StatusFailed     ExecutionStatus = "failed"
	StatusCancelled  ExecutionStatus = "cancelled"
)

// Disqualification reasons, ordered by precedence. The first matching
// reason becomes Eligibility.PrimaryReason.
const (
	ReasonEligible      = "ELIGIBLE"
	ReasonNotFound      = "OPERATION_NOT_FOUND"
	ReasonDryRun        = "DRY_RUN_OPERATION"
	ReasonNoSuccessful  = "NO_SUCCESSFUL_FILES"
	ReasonExpired       = "UNDO_WINDOW_EXPIRED"
	ReasonAlreadyUndone = "OPERATION_ALREADY_UNDONE"
	ReasonFilesMissing  = "FILES_MISSING"
	ReasonFilesModified = "FILES_MODIFIED"
	ReasonNameConflicts = "NAME_CONFLICTS_EXIST"
	ReasonReadOnlyFiles = "READONLY_FILES"
)

// FileValidationResult compares one file's recorded baseline against
// its live state. IsValid means the file exists, was not modified
// after the operation, and restoring it would not collide with
// another file.
type FileValidationResult struct {
	FilePath             string
	OriginalName         string
	CurrentName          string
	ExpectedModifiedTime time.Time
	CurrentModifiedTime  time.Time
	IsValid              bool
	CanBeRestored        bool
	ModifiedExternally   bool
	ConflictWithExisting bool
	ExistingFilePath     string
	ValidationError      string
}

// Eligibility is the outcome of a read-only undo precondition check.
// Derived on demand, never persisted.
type Eligibility struct {
	OperationID      string
	CanUndo          bool
	PrimaryReason    string
	TotalFiles       int
	ValidFiles       int
	InvalidFiles     int
	MissingFiles     []string
	ModifiedFiles    []string
	ConflictingFiles []string
	ReadOnlyFiles    []string
	FileValidations  []FileValidationResult
}

// NameConflict records that restoring OriginalPath would collide with
// an unrelated file already occupying that name.
type NameConflict struct {
	OriginalFile    string
	ConflictingFile string
	OriginalPath    string
	ConflictingPath string
	tempName        string
}

// SuggestTempName returns the temporary name the conflicting file is
// staged under, of the form <base>_undo_temp_<timestamp><ext>. The
// name is generated once and cached, so repeated calls within a plan
// agree.
func (c *NameConflict) SuggestTempName() string {
	if c.tempName != "" {
		return c.tempName
	}
	dir := path.Dir(c.ConflictingPath)
	base := path.Base(c.ConflictingPath)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := fmt.Sprintf("%s_undo_temp_%s%s", stem, time.Now().Format("20060102150405"), ext)
	if dir == "." {
		c.tempName = name
	} else {
		c.tempName = path.Join(dir, name)
	}
	return c.tempName
}

// ExecutionPlan is the concrete restoration an undo attempt will run.
// Built fresh per attempt and persisted only once execution starts.
type ExecutionPlan struct {
	OperationID       string
	UndoOperationID   string
	FileMappings      []history.FileMapping
	NameConflicts     []*NameConflict
	EstimatedDuration time.Duration
}

// Result aggregates the outcome of one undo attempt. The service owns
// it until finalized; callers receive it only after a terminal state.
type Result struct {
	UndoOperationID        string
	OriginalOperationID    string
	ExecutionStatus        ExecutionStatus
	TotalFiles             int
	SuccessfulRestorations int
	FailedRestorations     int
	SkippedFiles           int
	RestoredFiles          [][2]string // (pre-undo path, restored path)
	FailedFiles            [][2]string // (path, error message)
	StartTime              time.Time
	EndTime                time.Time
	WasCancelled           bool
	CancellationReason     string
	ErrorMessage           string
}

// NewResult creates a not-yet-started result for an undo attempt.
func NewResult(undoOperationID, originalOperationID string) *Result {
	return &Result{
		UndoOperationID:     undoOperationID,
		OriginalOperationID: originalOperationID,
		ExecutionStatus:     StatusNotStarted,
	}
}

func (r *Result) markCompleted() {
	r.ExecutionStatus = StatusCompleted
	r.EndTime = time.Now()
}

func (r *Result) markFailed(msg string) {
	r.ExecutionStatus = StatusFailed
	r.ErrorMessage = msg
	r.EndTime = time.Now()
}

func (r *Result) markCancelled(reason string) {
	r.ExecutionStatus = StatusCancelled
	r.WasCancelled = true
	r.CancellationReason = reason
	r.EndTime = time.Now()
}

// Duration returns the wall-clock time of the attempt so far.
func (r *Result) Duration() time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}
