package undo

import (
	"path"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
)

// ConflictResolver detects restore-target collisions and executes the
// restoration as a staged, rollback-capable rename sequence.
type ConflictResolver struct {
	fsys   filesystem.FullFileSystem
	logger zerolog.Logger
}

// NewConflictResolver creates a resolver over fsys.
func NewConflictResolver(fsys filesystem.FullFileSystem, logger zerolog.Logger) *ConflictResolver {
	return &ConflictResolver{
		fsys:   fsys,
		logger: logger.With().Str("component", "conflict_resolver").Logger(),
	}
}

// DetectNameConflicts scans the plan's restore targets against the
// live filesystem. A target occupied by anything other than its own
// source file is a conflict.
func (r *ConflictResolver) DetectNameConflicts(mappings []history.FileMapping) []*NameConflict {
	var conflicts []*NameConflict
	for _, m := range mappings {
		if m.TargetPath == m.CurrentPath {
			continue
		}
		if filesystem.Exists(r.fsys, m.TargetPath) {
			conflicts = append(conflicts, &NameConflict{
				OriginalFile:    path.Base(m.CurrentPath),
				ConflictingFile: path.Base(m.TargetPath),
				OriginalPath:    m.CurrentPath,
				ConflictingPath: m.TargetPath,
			})
		}
	}
	return conflicts
}

// ResolveConflictsWithTempNames assigns each conflicting file the
// temporary name it will be staged under, keyed by its current path.
func (r *ConflictResolver) ResolveConflictsWithTempNames(conflicts []*NameConflict) map[string]string {
	temp := make(map[string]string, len(conflicts))
	for _, c := range conflicts {
		temp[c.ConflictingPath] = c.SuggestTempName()
	}
	return temp
}

// ExecuteAtomicRenameSequence restores every mapping in order using
// two phases: first every occupied restore target is staged away to
// its temp name, then every file is renamed back to its original
// name. Each successful rename is pushed on an undo stack; any
// failure or cancellation unwinds the stack in reverse so the
// filesystem ends up exactly as it started. Staged files are left
// under their temp names on success.
//
// The returned pairs are the (pre-undo path, restored path) renames
// of phase 2 that survived.
func (r *ConflictResolver) ExecuteAtomicRenameSequence(mappings []history.FileMapping, tempMappings map[string]string, token *core.CancellationToken, onProgress core.ProgressFunc) ([][2]string, error) {
	if token == nil {
		token = core.NewCancellationToken()
	}
	var undoStack [][2]string

	// Phase 1: stage occupied targets out of the way.
	for _, m := range mappings {
		if cerr := token.Check(); cerr != nil {
			return nil, r.unwind(undoStack, cerr)
		}
		tempName, ok := tempMappings[m.TargetPath]
		if !ok || m.TargetPath == m.CurrentPath {
			continue
		}
		if !filesystem.Exists(r.fsys, m.TargetPath) {
			continue
		}
		if err := r.fsys.Rename(m.TargetPath, tempName); err != nil {
			return nil, r.unwind(undoStack, core.ClassifyFSError("stage", m.TargetPath, err))
		}
		undoStack = append(undoStack, [2]string{m.TargetPath, tempName})
		r.logger.Debug().Str("from", m.TargetPath).Str("to", tempName).Msg("staged conflicting file")
	}

	// Phase 2: rename everything back to its original name.
	staged := len(undoStack)
	restored := make([][2]string, 0, len(mappings))
	for i, m := range mappings {
		if cerr := token.Check(); cerr != nil {
			return nil, r.unwind(undoStack, cerr)
		}
		if err := r.fsys.Rename(m.CurrentPath, m.TargetPath); err != nil {
			return nil, r.unwind(undoStack, core.ClassifyFSError("restore", m.CurrentPath, err))
		}
		undoStack = append(undoStack, [2]string{m.CurrentPath, m.TargetPath})
		restored = append(restored, [2]string{m.CurrentPath, m.TargetPath})
		if onProgress != nil {
			onProgress(float64(i+1)/float64(len(mappings))*100, m.OriginalName)
		}
	}

	r.logger.Info().
		Int("restored", len(restored)).
		Int("staged", staged).
		Msg("rename sequence completed")
	return restored, nil
}

// ExecuteRenameSequence is the single-phase variant used when no
// conflicts exist. It keeps the same rollback-on-failure discipline.
func (r *ConflictResolver) ExecuteRenameSequence(mappings []history.FileMapping, token *core.CancellationToken, onProgress core.ProgressFunc) ([][2]string, error) {
	return r.ExecuteAtomicRenameSequence(mappings, nil, token, onProgress)
}

// unwind reverses every rename on the stack, newest first, and wraps
// cause together with any errors hit while rolling back.
func (r *ConflictResolver) unwind(undoStack [][2]string, cause error) error {
	rollbackErrs := make(map[string]error)
	for i := len(undoStack) - 1; i >= 0; i-- {
		from, to := undoStack[i][0], undoStack[i][1]
		if err := r.fsys.Rename(to, from); err != nil {
			rollbackErrs[to] = err
			r.logger.Error().Err(err).Str("from", to).Str("to", from).Msg("rollback rename failed")
		}
	}
	if len(rollbackErrs) > 0 {
		return &core.RollbackError{OriginalErr: cause, RollbackErrs: rollbackErrs}
	}
	r.logger.Warn().Err(cause).Int("unwound", len(undoStack)).Msg("rename sequence rolled back")
	return cause
}
