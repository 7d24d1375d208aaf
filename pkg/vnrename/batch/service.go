package batch

import (
	"encoding/json"
	"errors"
	"path"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename"
	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/engine"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
)

// FailureTracker aggregates per-file outcomes for an operation. It is
// satisfied by failure.Handler; a nil tracker disables aggregation.
// Reports outlive the operation so callers can inspect them; dropping
// a report is the caller's job.
type FailureTracker interface {
	engine.FailureRecorder
	InitializeOperation(operationID string, totalFiles int)
}

// Service runs batch renames asynchronously. At most one operation is
// in flight at a time; a second StartBatchOperation while one runs
// fails with AlreadyRunningError.
type Service struct {
	engine  RenameEngine
	fsys    filesystem.FullFileSystem
	store   history.Store
	tracker FailureTracker
	idgen   vnrename.IDGenerator
	logger  zerolog.Logger

	mu        sync.Mutex
	running   bool
	currentID string
	state     core.OperationStatus
	token     *core.CancellationToken
	done      chan struct{}
}

// NewService wires a batch service. store and tracker may be nil.
func NewService(eng RenameEngine, fsys filesystem.FullFileSystem, store history.Store, tracker FailureTracker, logger zerolog.Logger) *Service {
	return &Service{
		engine:  eng,
		fsys:    fsys,
		store:   store,
		tracker: tracker,
		idgen:   vnrename.TimestampIDGenerator,
		logger:  logger.With().Str("component", "batch").Logger(),
		state:   core.StatusPending,
	}
}

// StartBatchOperation begins an asynchronous rename and returns its
// operation ID immediately. Progress and the final result are
// delivered through cb on a dedicated monitor goroutine.
func (s *Service) StartBatchOperation(req Request, cb Callbacks) (string, error) {
	if err := req.Rules.Validate(); err != nil {
		return "", &core.ValidationError{Reason: "invalid normalization rules", Cause: err}
	}

	s.mu.Lock()
	if s.running {
		id := s.currentID
		s.mu.Unlock()
		return "", &core.AlreadyRunningError{RunningOperationID: id}
	}
	opID := s.idgen("batch")
	s.running = true
	s.currentID = opID
	s.state = core.StatusRunning
	s.token = core.NewCancellationToken()
	s.done = make(chan struct{})
	done := s.done
	token := s.token
	s.mu.Unlock()

	// Progress updates may be dropped under pressure; the terminal
	// result never is.
	progressCh := make(chan Progress, 64)
	resultCh := make(chan core.OperationResult, 1)

	go s.monitor(opID, cb, progressCh, resultCh, done)
	go s.run(opID, req, token, progressCh, resultCh)

	s.logger.Info().
		Str("operation_id", opID).
		Int("total_files", len(req.Files)).
		Bool("dry_run", req.DryRun).
		Msg("batch operation started")
	return opID, nil
}

// CancelOperation requests cooperative cancellation of the running
// operation. It reports whether a cancellation was actually issued.
func (s *Service) CancelOperation() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.token == nil {
		return false
	}
	s.token.RequestCancellation("user requested cancellation")
	s.state = core.StatusCancelling
	s.logger.Info().Str("operation_id", s.currentID).Msg("cancellation requested")
	return true
}

// IsRunning reports whether an operation is currently in flight.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the service-level status of the current or most
// recent operation.
func (s *Service) Status() core.OperationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until the current operation has delivered its result,
// or returns immediately when nothing is running.
func (s *Service) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Service) finish(st core.OperationStatus) {
	s.mu.Lock()
	s.state = st
	s.running = false
	s.token = nil
	s.mu.Unlock()
}

// run is the worker goroutine. It owns the OperationResult until the
// terminal snapshot is handed to the monitor.
func (s *Service) run(opID string, req Request, token *core.CancellationToken, progressCh chan<- Progress, resultCh chan<- core.OperationResult) {
	result := core.NewOperationResult(opID, req.SourceDir, len(req.Files), req.DryRun)
	result.Status = core.StatusRunning

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("operation_id", opID).Interface("panic", r).Msg("batch worker panicked")
			result.MarkFailed("internal error during batch execution")
			s.finish(core.StatusFailed)
			resultCh <- result.Snapshot()
		}
	}()

	if s.tracker != nil {
		s.tracker.InitializeOperation(opID, len(req.Files))
	}

	lastPct := 0.0
	send := func(pct float64, file string) {
		if pct < lastPct {
			pct = lastPct
		}
		lastPct = pct
		p := Progress{
			OperationID:    opID,
			Percentage:     pct,
			CurrentFile:    file,
			ProcessedFiles: len(result.FileResults),
			TotalFiles:     result.TotalFiles,
			SuccessCount:   result.SuccessCount,
			ErrorCount:     result.ErrorCount,
			SkippedCount:   result.SkippedCount,
		}
		select {
		case progressCh <- p:
		default:
			// Consumer is behind. Drop the update rather than stall
			// the rename loop.
		}
	}

	cancelResult := func(cerr *core.CancelledError) {
		result.MarkCancelled(cerr.Reason)
		s.finish(core.StatusCancelled)
		resultCh <- result.Snapshot()
	}

	send(0, "scanning files")
	if cerr := token.Check(); cerr != nil {
		cancelResult(cerr)
		return
	}

	previews := s.engine.PreviewRename(req.Files, req.Rules)
	send(3, "resolving naming conflicts")
	if cerr := token.Check(); cerr != nil {
		cancelResult(cerr)
		return
	}
	previews = s.engine.DetectAndResolveConflicts(previews)
	send(progressSetupEnd, "starting renames")

	opts := engine.Options{
		OperationID: opID,
		SourceDir:   req.SourceDir,
		DryRun:      req.DryRun,
		Rules:       req.Rules,
		Recorder:    recorderOrNil(s.tracker),
	}
	execProgress := func(pct float64, file string) {
		span := progressExecutionEnd - progressSetupEnd
		send(progressSetupEnd+pct/100*span, file)
	}
	execResult, err := s.engine.ExecuteBatchRename(previews, opts, execProgress, token)
	if execResult != nil {
		mergeResult(result, execResult)
	}
	if err != nil {
		var cerr *core.CancelledError
		if errors.As(err, &cerr) {
			s.logger.Info().Str("operation_id", opID).Str("reason", cerr.Reason).Msg("batch operation cancelled")
			cancelResult(cerr)
			return
		}
		s.logger.Error().Err(err).Str("operation_id", opID).Msg("batch execution failed")
		result.MarkFailed(err.Error())
		s.finish(core.StatusFailed)
		resultCh <- result.Snapshot()
		return
	}

	send(progressExecutionEnd, "saving operation history")
	if s.store != nil && !req.DryRun {
		if herr := s.saveHistory(opID, req, result); herr != nil {
			// History failure does not undo completed renames.
			s.logger.Error().Err(herr).Str("operation_id", opID).Msg("failed to persist operation history")
		}
	}

	result.MarkCompleted()
	send(100, "operation completed")
	s.finish(core.StatusCompleted)
	resultCh <- result.Snapshot()
}

// monitor delivers progress and the terminal result to the caller's
// callbacks, recovering from callback panics so the service survives
// misbehaving consumers.
func (s *Service) monitor(opID string, cb Callbacks, progressCh <-chan Progress, resultCh <-chan core.OperationResult, done chan struct{}) {
	defer close(done)
	invoke := func(fn func()) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("operation_id", opID).Interface("panic", r).Msg("callback panicked")
			}
		}()
		fn()
	}
	for {
		select {
		case p := <-progressCh:
			if cb.OnProgress != nil {
				invoke(func() { cb.OnProgress(p) })
			}
		case res := <-resultCh:
			// Drain any progress updates that raced the result.
			for {
				select {
				case p := <-progressCh:
					if cb.OnProgress != nil {
						invoke(func() { cb.OnProgress(p) })
					}
					continue
				default:
				}
				break
			}
			if res.Status == core.StatusFailed && cb.OnError != nil {
				invoke(func() { cb.OnError(res.ErrorMessage) })
			}
			if cb.OnComplete != nil {
				invoke(func() { cb.OnComplete(res) })
			}
			return
		}
	}
}

// saveHistory records the finished operation with the per-file
// baselines undo validation needs later.
func (s *Service) saveHistory(opID string, req Request, result *core.OperationResult) error {
	now := time.Now()
	rules, err := json.Marshal(req.Rules)
	if err != nil {
		return err
	}

	files := make([]history.FileRecord, 0, len(result.FileResults))
	for _, fr := range result.FileResults {
		// Successful files live under their new name now; that is the
		// path undo validation will inspect.
		renamedPath := path.Join(path.Dir(fr.Path), fr.NewName)
		rec := history.FileRecord{
			OperationID:  opID,
			FilePath:     fr.Path,
			OriginalName: fr.OriginalName,
			NewName:      fr.NewName,
			ErrorMessage: fr.ErrorMessage,
		}
		switch {
		case fr.Skipped:
			rec.Status = history.FileStatusSkipped
		case fr.Success:
			rec.Status = history.FileStatusSuccess
		default:
			rec.Status = history.FileStatusFailed
		}
		if fr.Success && !fr.Skipped {
			rec.FilePath = renamedPath
			if info, serr := s.fsys.Stat(renamedPath); serr == nil {
				rec.OriginalModifiedTime = info.ModTime()
				rec.FileSizeBytes = info.Size()
			}
			if sum, cerr := filesystem.Checksum(s.fsys, renamedPath); cerr == nil {
				rec.Checksum = sum
			}
		}
		files = append(files, rec)
	}

	op := history.OperationRecord{
		OperationID:     opID,
		OperationName:   "batch rename",
		SourceDirectory: req.SourceDir,
		TotalFiles:      result.TotalFiles,
		SuccessfulFiles: result.SuccessCount,
		FailedFiles:     result.ErrorCount,
		SkippedFiles:    result.SkippedCount,
		DryRun:          req.DryRun,
		Status:          core.StatusCompleted,
		CreatedAt:       now,
		StartedAt:       result.StartedAt,
		CompletedAt:     now,
		DurationSeconds: now.Sub(result.StartedAt).Seconds(),
		Rules:           rules,
		CanBeUndone:     result.SuccessCount > 0,
		UndoExpiryTime:  now.Add(history.UndoRetention),
	}
	return s.store.SaveOperation(op, files)
}

func recorderOrNil(t FailureTracker) engine.FailureRecorder {
	if t == nil {
		return nil
	}
	return t
}

func mergeResult(dst *core.OperationResult, src *core.OperationResult) {
	dst.FileResults = src.FileResults
	dst.SuccessCount = src.SuccessCount
	dst.ErrorCount = src.ErrorCount
	dst.SkippedCount = src.SkippedCount
}
