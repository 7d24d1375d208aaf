package core

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// ErrorCode is the closed enumeration of failure kinds a file
// operation can report. The partial-failure handler dispatches on these
// instead of matching error strings.
type ErrorCode string

const (
	CodeFileNotFound           ErrorCode = "FILE_NOT_FOUND"
	CodePermissionDenied       ErrorCode = "PERMISSION_DENIED"
	CodeFileInUse              ErrorCode = "FILE_IN_USE"
	CodeDiskFull               ErrorCode = "DISK_FULL"
	CodePathTooLong            ErrorCode = "PATH_TOO_LONG"
	CodeReadOnlyFile           ErrorCode = "READ_ONLY_FILE"
	CodeInvalidFilename        ErrorCode = "INVALID_FILENAME"
	CodeDuplicateNameConflict  ErrorCode = "DUPLICATE_NAME_CONFLICT"
	CodeNetworkTimeout         ErrorCode = "NETWORK_TIMEOUT"
	CodeDriveNotReady          ErrorCode = "DRIVE_NOT_READY"
	CodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	CodeSystemError            ErrorCode = "SYSTEM_ERROR"
)

// Severity ranks how badly a failure compromises the batch.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// FileSystemError wraps a failed rename or stat with its classified
// code and severity.
type FileSystemError struct {
	Code     ErrorCode
	Severity Severity
	Path     string
	Action   string
	Err      error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("failed to %s '%s': %v (%s)", e.Action, e.Path, e.Err, e.Code)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

// ClassifyFSError converts a raw filesystem error into a
// FileSystemError with a code and severity. Unknown causes degrade to
// SYSTEM_ERROR at error severity.
func ClassifyFSError(action, path string, err error) *FileSystemError {
	code := CodeSystemError
	severity := SeverityError

	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = CodeFileNotFound
	case errors.Is(err, fs.ErrPermission):
		code = CodePermissionDenied
	case errors.Is(err, fs.ErrExist):
		code = CodeDuplicateNameConflict
	case errors.Is(err, fs.ErrInvalid):
		code = CodeInvalidFilename
	case strings.Contains(err.Error(), "file name too long"):
		code = CodePathTooLong
	case strings.Contains(err.Error(), "no space left"):
		code = CodeDiskFull
		severity = SeverityCritical
	case strings.Contains(err.Error(), "resource busy"),
		strings.Contains(err.Error(), "being used by another process"):
		code = CodeFileInUse
	case strings.Contains(err.Error(), "timed out"):
		code = CodeNetworkTimeout
	}

	return &FileSystemError{
		Code:     code,
		Severity: severity,
		Path:     path,
		Action:   action,
		Err:      err,
	}
}

// CancelledError signals cooperative cancellation. It is expected
// control flow, not a defect; callers distinguish it with errors.As.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	if e.Reason == "" {
		return "operation cancelled"
	}
	return fmt.Sprintf("operation cancelled: %s", e.Reason)
}

// IsCancelled reports whether err carries a CancelledError anywhere in
// its chain.
func IsCancelled(err error) bool {
	var ce *CancelledError
	return errors.As(err, &ce)
}

// ValidationError reports a precondition failure detected before any
// filesystem mutation.
type ValidationError struct {
	OperationID string
	Reason      string
	Cause       error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error for operation %s: %s: %v", e.OperationID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("validation error for operation %s: %s", e.OperationID, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// AlreadyRunningError rejects a second execution attempt while one is
// active. The request is refused synchronously, never queued.
type AlreadyRunningError struct {
	RunningOperationID string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("another batch operation is already running: %s", e.RunningOperationID)
}

// RollbackError wraps a failure during a rename sequence together with
// any errors hit while unwinding the staged renames.
type RollbackError struct {
	OriginalErr  error
	RollbackErrs map[string]error // path -> unwind error
}

func (e *RollbackError) Error() string {
	msg := fmt.Sprintf("rename sequence failed: %v", e.OriginalErr)
	if len(e.RollbackErrs) > 0 {
		msg += "\n\nrollback also failed:"
		for path, err := range e.RollbackErrs {
			msg += fmt.Sprintf("\n  - %s: %v", path, err)
		}
	}
	return msg
}

func (e *RollbackError) Unwrap() error {
	return e.OriginalErr
}
