package undo

import (
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename"
	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
)

// estimate per file when sizing an execution plan.
const perFileEstimate = 50 * time.Millisecond

// Service coordinates undo: eligibility, planning, the rename
// sequence, and persistence of the attempt. A completed operation can
// be undone at most once; executing an undo clears the operation's
// undoable flag.
type Service struct {
	fsys      filesystem.FullFileSystem
	store     history.Store
	validator *FileModificationValidator
	resolver  *ConflictResolver
	idgen     vnrename.IDGenerator
	logger    zerolog.Logger
}

// NewService wires an undo service over fsys and store.
func NewService(fsys filesystem.FullFileSystem, store history.Store, logger zerolog.Logger) *Service {
	return &Service{
		fsys:      fsys,
		store:     store,
		validator: NewFileModificationValidator(fsys, logger),
		resolver:  NewConflictResolver(fsys, logger),
		idgen:     vnrename.TimestampIDGenerator,
		logger:    logger.With().Str("component", "undo").Logger(),
	}
}

// CanUndoOperation checks every precondition for undoing an operation
// without mutating anything. Disqualifying reasons are ranked; the
// first match becomes PrimaryReason. Record-level checks run before
// any file is inspected.
func (s *Service) CanUndoOperation(operationID string) (*Eligibility, error) {
	elig := &Eligibility{OperationID: operationID, PrimaryReason: ReasonEligible}

	op, err := s.store.GetOperation(operationID)
	if err != nil {
		return nil, err
	}
	switch {
	case op == nil:
		elig.PrimaryReason = ReasonNotFound
		return elig, nil
	case op.DryRun:
		elig.PrimaryReason = ReasonDryRun
		return elig, nil
	case op.SuccessfulFiles == 0:
		elig.PrimaryReason = ReasonNoSuccessful
		return elig, nil
	case !op.UndoExpiryTime.IsZero() && time.Now().After(op.UndoExpiryTime):
		elig.PrimaryReason = ReasonExpired
		return elig, nil
	case !op.CanBeUndone:
		elig.PrimaryReason = ReasonAlreadyUndone
		return elig, nil
	}

	files, err := s.store.FileOperations(operationID)
	if err != nil {
		return nil, err
	}
	for _, rec := range files {
		if rec.Status != history.FileStatusSuccess {
			continue
		}
		v := s.validator.ValidateFileIntegrity(rec.FilePath, rec.OriginalName, path.Base(rec.FilePath), rec.OriginalModifiedTime)
		elig.TotalFiles++
		elig.FileValidations = append(elig.FileValidations, v)

		// A zero current mtime means the stat failed: the file is gone.
		switch {
		case v.CurrentModifiedTime.IsZero():
			elig.MissingFiles = append(elig.MissingFiles, rec.FilePath)
		case v.ModifiedExternally:
			elig.ModifiedFiles = append(elig.ModifiedFiles, rec.FilePath)
		}
		if v.ConflictWithExisting {
			elig.ConflictingFiles = append(elig.ConflictingFiles, v.ExistingFilePath)
		}
		if v.IsValid {
			if filesystem.IsReadOnly(s.fsys, rec.FilePath) {
				elig.ReadOnlyFiles = append(elig.ReadOnlyFiles, rec.FilePath)
			} else {
				elig.ValidFiles++
			}
		}

		s.cacheValidation(operationID, rec.FilePath, v)
	}
	elig.InvalidFiles = elig.TotalFiles - elig.ValidFiles

	switch {
	case len(elig.MissingFiles) > 0:
		elig.PrimaryReason = ReasonFilesMissing
	case len(elig.ModifiedFiles) > 0:
		elig.PrimaryReason = ReasonFilesModified
	case len(elig.ConflictingFiles) > 0:
		elig.PrimaryReason = ReasonNameConflicts
	case len(elig.ReadOnlyFiles) > 0:
		elig.PrimaryReason = ReasonReadOnlyFiles
	default:
		elig.CanUndo = true
	}
	return elig, nil
}

// CreateUndoPlan builds the restoration for an operation from its
// successful file records only. Conflicts are detected fresh against
// the live filesystem.
func (s *Service) CreateUndoPlan(operationID string) (*ExecutionPlan, error) {
	op, err := s.store.GetOperation(operationID)
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, &core.ValidationError{OperationID: operationID, Reason: "operation not found"}
	}

	files, err := s.store.FileOperations(operationID)
	if err != nil {
		return nil, err
	}
	var mappings []history.FileMapping
	for _, rec := range files {
		if rec.Status != history.FileStatusSuccess {
			continue
		}
		mappings = append(mappings, history.FileMapping{
			CurrentPath:  rec.FilePath,
			OriginalName: rec.OriginalName,
			TargetPath:   restoreTarget(rec.FilePath, rec.OriginalName),
		})
	}

	return &ExecutionPlan{
		OperationID:       operationID,
		UndoOperationID:   s.idgen("undo"),
		FileMappings:      mappings,
		NameConflicts:     s.resolver.DetectNameConflicts(mappings),
		EstimatedDuration: time.Duration(len(mappings)) * perFileEstimate,
	}, nil
}

// ExecuteUndoOperation validates, plans and runs the undo, then
// persists the attempt and consumes the operation's undoable flag.
// The progress scale is validation 0-20, planning at 20, execution
// 20-90, persistence 90-100. A nil token or progress callback is
// allowed.
func (s *Service) ExecuteUndoOperation(operationID string, onProgress core.ProgressFunc, token *core.CancellationToken) (*Result, error) {
	if token == nil {
		token = core.NewCancellationToken()
	}
	emit := func(pct float64, label string) {
		if onProgress != nil {
			onProgress(pct, label)
		}
	}

	result := NewResult("", operationID)
	result.StartTime = time.Now()
	result.ExecutionStatus = StatusValidating
	emit(0, "validating operation")

	op, err := s.store.GetOperation(operationID)
	if err != nil {
		result.markFailed(err.Error())
		return result, err
	}

	elig, err := s.CanUndoOperation(operationID)
	if err != nil {
		result.markFailed(err.Error())
		return result, err
	}
	if !elig.CanUndo {
		verr := &core.ValidationError{OperationID: operationID, Reason: fmt.Sprintf("operation cannot be undone: %s", elig.PrimaryReason)}
		result.markFailed(verr.Error())
		s.logger.Warn().Str("operation_id", operationID).Str("reason", elig.PrimaryReason).Msg("undo rejected")
		return result, verr
	}
	if cerr := token.Check(); cerr != nil {
		result.markCancelled(cerr.Reason)
		return result, cerr
	}

	emit(20, "planning restoration")
	result.ExecutionStatus = StatusPreparing
	plan, err := s.CreateUndoPlan(operationID)
	if err != nil {
		result.markFailed(err.Error())
		return result, err
	}
	result.UndoOperationID = plan.UndoOperationID
	result.TotalFiles = len(plan.FileMappings)

	result.ExecutionStatus = StatusExecuting
	execProgress := func(pct float64, label string) {
		emit(20+pct/100*70, label)
	}

	var restored [][2]string
	var execErr error
	if len(plan.NameConflicts) > 0 {
		s.logger.Info().
			Str("operation_id", operationID).
			Int("conflicts", len(plan.NameConflicts)).
			Msg("restoring with conflict staging")
		temp := s.resolver.ResolveConflictsWithTempNames(plan.NameConflicts)
		restored, execErr = s.resolver.ExecuteAtomicRenameSequence(plan.FileMappings, temp, token, execProgress)
	} else {
		restored, execErr = s.resolver.ExecuteRenameSequence(plan.FileMappings, token, execProgress)
	}

	if execErr != nil {
		var cerr *core.CancelledError
		if errors.As(execErr, &cerr) {
			result.markCancelled(cerr.Reason)
		} else {
			result.markFailed(execErr.Error())
			result.FailedRestorations = result.TotalFiles
			var fsErr *core.FileSystemError
			if errors.As(execErr, &fsErr) {
				result.FailedFiles = append(result.FailedFiles, [2]string{fsErr.Path, fsErr.Error()})
			}
		}
		s.persistResult(result, op, plan)
		return result, execErr
	}

	result.SuccessfulRestorations = len(restored)
	result.RestoredFiles = restored
	result.markCompleted()

	emit(90, "saving undo history")
	s.persistResult(result, op, plan)
	if err := s.store.MarkOperationUndone(operationID, plan.UndoOperationID); err != nil {
		s.logger.Error().Err(err).Str("operation_id", operationID).Msg("failed to consume undoable flag")
	}
	emit(100, "undo completed")

	s.logger.Info().
		Str("operation_id", operationID).
		Str("undo_operation_id", plan.UndoOperationID).
		Int("restored", len(restored)).
		Msg("undo completed")
	return result, nil
}

// Undo runs an undo with no progress reporting and a fresh token.
func (s *Service) Undo(operationID string) error {
	_, err := s.ExecuteUndoOperation(operationID, nil, nil)
	return err
}

// LastUndoable returns the most recent operation still eligible for
// undo in sourceDir, or for any directory when sourceDir is empty.
func (s *Service) LastUndoable(sourceDir string) (*history.OperationRecord, error) {
	return s.store.LastUndoable(sourceDir)
}

// CleanupExpired drops undo eligibility from operations whose
// retention window has passed.
func (s *Service) CleanupExpired() (int, error) {
	return s.store.CleanupExpired(time.Now())
}

func (s *Service) cacheValidation(operationID, filePath string, v FileValidationResult) {
	entry := history.ValidationCacheEntry{
		OperationID:       operationID,
		FilePath:          filePath,
		IsValid:           v.IsValid,
		ValidationError:   v.ValidationError,
		LastValidatedTime: time.Now(),
	}
	if err := s.store.CacheValidation(entry); err != nil {
		s.logger.Debug().Err(err).Str("path", filePath).Msg("validation cache write failed")
	}
}

func (s *Service) persistResult(result *Result, op *history.OperationRecord, plan *ExecutionPlan) {
	rec := history.UndoRecord{
		UndoOperationID:        result.UndoOperationID,
		OriginalOperationID:    result.OriginalOperationID,
		TotalFiles:             result.TotalFiles,
		SuccessfulRestorations: result.SuccessfulRestorations,
		FailedRestorations:     result.FailedRestorations,
		SkippedFiles:           result.SkippedFiles,
		ExecutionStatus:        string(result.ExecutionStatus),
		CreatedAt:              result.StartTime,
		StartedAt:              result.StartTime,
		CompletedAt:            result.EndTime,
		DurationSeconds:        result.Duration().Seconds(),
		WasCancelled:           result.WasCancelled,
		CancellationReason:     result.CancellationReason,
		ErrorMessage:           result.ErrorMessage,
		FileMappings:           plan.FileMappings,
		RestoredFiles:          result.RestoredFiles,
		FailedFiles:            result.FailedFiles,
	}
	if op != nil {
		rec.FolderPath = op.SourceDirectory
	}
	if err := s.store.SaveUndoOperation(rec); err != nil {
		s.logger.Error().Err(err).Str("undo_operation_id", result.UndoOperationID).Msg("failed to persist undo attempt")
	}
}
