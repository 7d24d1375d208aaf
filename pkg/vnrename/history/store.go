// Package history persists batch operations, their per-file records
// and undo attempts. The storage contract mirrors four logical tables
// keyed by operation ID: operation_history, file_operations,
// undo_operations and file_validation_cache.
package history

import (
	"encoding/json"
	"time"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
)

// OperationRecord is one row of operation_history: a completed (or
// attempted) forward batch rename.
type OperationRecord struct {
	OperationID     string               `json:"operation_id"`
	OperationName   string               `json:"operation_name"`
	SourceDirectory string               `json:"source_directory"`
	TotalFiles      int                  `json:"total_files"`
	SuccessfulFiles int                  `json:"successful_files"`
	FailedFiles     int                  `json:"failed_files"`
	SkippedFiles    int                  `json:"skipped_files"`
	DryRun          bool                 `json:"dry_run"`
	Status          core.OperationStatus `json:"status"`
	CreatedAt       time.Time            `json:"created_at"`
	StartedAt       time.Time            `json:"started_at"`
	CompletedAt     time.Time            `json:"completed_at"`
	DurationSeconds float64              `json:"duration_seconds"`
	Rules           json.RawMessage      `json:"normalization_rules,omitempty"`
	OperationLog    []string             `json:"operation_log,omitempty"`
	ErrorSummary    string               `json:"error_summary,omitempty"`
	CanBeUndone     bool                 `json:"can_be_undone"`
	UndoExpiryTime  time.Time            `json:"undo_expiry_time"`
	UndoOperationID string               `json:"undo_operation_id,omitempty"`
}

// Per-file outcomes as stored in FileRecord.Status.
const (
	FileStatusSuccess = "success"
	FileStatusFailed  = "failed"
	FileStatusSkipped = "skipped"
)

// FileRecord is one row of file_operations: one file within an
// operation, with the baseline metadata the undo validator checks
// against.
type FileRecord struct {
	OperationID          string    `json:"operation_id"`
	FilePath             string    `json:"file_path"` // path after the rename
	OriginalName         string    `json:"original_name"`
	NewName              string    `json:"new_name"`
	Status               string    `json:"operation_status"` // success | failed | skipped
	ErrorMessage         string    `json:"error_message,omitempty"`
	OriginalModifiedTime time.Time `json:"original_modified_time"`
	FileSizeBytes        int64     `json:"file_size_bytes"`
	Checksum             string    `json:"file_checksum,omitempty"`
}

// FileMapping is one planned restoration inside an undo operation.
type FileMapping struct {
	CurrentPath  string `json:"current"`
	OriginalName string `json:"original"`
	TargetPath   string `json:"target"`
}

// UndoRecord is one row of undo_operations: a single undo attempt.
type UndoRecord struct {
	UndoOperationID        string        `json:"undo_operation_id"`
	OriginalOperationID    string        `json:"original_operation_id"`
	FolderPath             string        `json:"folder_path"`
	TotalFiles             int           `json:"total_files"`
	SuccessfulRestorations int           `json:"successful_restorations"`
	FailedRestorations     int           `json:"failed_restorations"`
	SkippedFiles           int           `json:"skipped_files"`
	ExecutionStatus        string        `json:"execution_status"`
	CreatedAt              time.Time     `json:"created_at"`
	StartedAt              time.Time     `json:"started_at"`
	CompletedAt            time.Time     `json:"completed_at"`
	DurationSeconds        float64       `json:"duration_seconds"`
	WasCancelled           bool          `json:"was_cancelled"`
	CancellationReason     string        `json:"cancellation_reason,omitempty"`
	ErrorMessage           string        `json:"error_message,omitempty"`
	FileMappings           []FileMapping `json:"file_mappings,omitempty"`
	RestoredFiles          [][2]string   `json:"restored_files,omitempty"`
	FailedFiles            [][2]string   `json:"failed_files,omitempty"`
}

// ValidationCacheEntry memoizes a file validation result, keyed by
// operation + path.
type ValidationCacheEntry struct {
	OperationID       string    `json:"operation_id"`
	FilePath          string    `json:"file_path"`
	IsValid           bool      `json:"is_valid"`
	ValidationError   string    `json:"validation_error,omitempty"`
	LastValidatedTime time.Time `json:"last_validated_time"`
}

// Store is the persistence contract the services depend on. It is
// deliberately storage-engine agnostic; FileStore is the JSON-file
// implementation shipped with the module.
type Store interface {
	// SaveOperation persists the operation row and its file rows,
	// replacing any previous record with the same ID.
	SaveOperation(op OperationRecord, files []FileRecord) error

	// GetOperation returns the operation row, or nil if unknown.
	GetOperation(operationID string) (*OperationRecord, error)

	// FileOperations returns the per-file rows for an operation.
	FileOperations(operationID string) ([]FileRecord, error)

	// RecentOperations returns up to limit operations, newest first.
	RecentOperations(limit int) ([]OperationRecord, error)

	// LastUndoable returns the most recent operation that is still
	// flagged undoable, optionally filtered to a source directory.
	// Returns nil if none qualifies.
	LastUndoable(sourceDir string) (*OperationRecord, error)

	// MarkOperationUndone clears the undoable flag and links the undo
	// attempt that consumed it.
	MarkOperationUndone(operationID, undoOperationID string) error

	// SaveUndoOperation persists one undo attempt.
	SaveUndoOperation(rec UndoRecord) error

	// UndoOperations returns up to limit undo attempts, newest first.
	UndoOperations(limit int) ([]UndoRecord, error)

	// CleanupExpired clears the undoable flag on operations whose undo
	// window has passed and drops expired undo rows and cache entries.
	// Returns the number of operations expired.
	CleanupExpired(now time.Time) (int, error)

	// CacheValidation memoizes a validation result.
	CacheValidation(entry ValidationCacheEntry) error

	// CachedValidation returns a memoized result, or nil.
	CachedValidation(operationID, filePath string) (*ValidationCacheEntry, error)
}
