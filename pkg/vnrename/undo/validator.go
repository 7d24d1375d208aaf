package undo

import (
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
)

// ModTimeTolerance absorbs timestamp granularity differences between
// volumes when comparing a file's mtime against its recorded baseline.
const ModTimeTolerance = 2 * time.Second

// FileModificationValidator decides whether a renamed file is still
// safe to restore. It only reads the filesystem, never mutates it.
type FileModificationValidator struct {
	fsys   filesystem.StatFS
	logger zerolog.Logger
}

// NewFileModificationValidator creates a validator over fsys.
func NewFileModificationValidator(fsys filesystem.StatFS, logger zerolog.Logger) *FileModificationValidator {
	return &FileModificationValidator{
		fsys:   fsys,
		logger: logger.With().Str("component", "validator").Logger(),
	}
}

// ValidateFileIntegrity compares the file at currentPath against the
// baseline recorded when the forward operation completed. A missing
// file is terminal for that file. A name collision at the restore
// target blocks restoration even when the file itself is untouched.
func (v *FileModificationValidator) ValidateFileIntegrity(currentPath, originalName, currentName string, expectedModifiedTime time.Time) FileValidationResult {
	res := FileValidationResult{
		FilePath:             currentPath,
		OriginalName:         originalName,
		CurrentName:          currentName,
		ExpectedModifiedTime: expectedModifiedTime,
	}

	info, err := v.fsys.Stat(currentPath)
	if err != nil {
		res.ValidationError = fmt.Sprintf("file no longer exists: %s", currentPath)
		return res
	}
	res.CurrentModifiedTime = info.ModTime()

	drift := res.CurrentModifiedTime.Sub(expectedModifiedTime)
	if drift < 0 {
		drift = -drift
	}
	if drift > ModTimeTolerance {
		res.ModifiedExternally = true
		res.ValidationError = fmt.Sprintf("file was modified externally after the operation (mtime drifted by %s)", drift)
	}

	// Collision check is independent of the modification check. An
	// untouched file still cannot be restored over an unrelated
	// occupant of its original name.
	target := restoreTarget(currentPath, originalName)
	if target != currentPath {
		if _, terr := v.fsys.Stat(target); terr == nil {
			res.ConflictWithExisting = true
			res.ExistingFilePath = target
			if res.ValidationError == "" {
				res.ValidationError = fmt.Sprintf("restore target already exists: %s", target)
			}
		}
	}

	res.CanBeRestored = !res.ConflictWithExisting
	res.IsValid = !res.ModifiedExternally && !res.ConflictWithExisting

	if !res.IsValid {
		v.logger.Debug().
			Str("path", currentPath).
			Str("reason", res.ValidationError).
			Msg("file failed undo validation")
	}
	return res
}

// restoreTarget is the path the file goes back to: its original name
// inside its current directory.
func restoreTarget(currentPath, originalName string) string {
	dir := path.Dir(currentPath)
	if dir == "." {
		return originalName
	}
	return path.Join(dir, originalName)
}
