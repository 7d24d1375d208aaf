// Package engine implements the forward rename path: preview
// generation, conflict detection and resolution, and batch execution
// against a filesystem. The batch service consumes it through an
// interface; nothing here persists anything.
package engine

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gammazero/toposort"
	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/normalize"
)

// FailureRecorder receives per-file outcomes during execution. The
// partial-failure handler implements it; a nil recorder disables
// tracking.
type FailureRecorder interface {
	RecordSuccess(operationID string)
	RecordFailure(operationID, filePath, targetPath string, ferr *core.FileSystemError)
	RecordSkip(operationID string)
}

// Options configures one batch execution.
type Options struct {
	OperationID string
	SourceDir   string
	DryRun      bool
	Rules       normalize.Rules
	Recorder    FailureRecorder
}

// Engine generates previews and executes batch renames.
type Engine struct {
	fsys   filesystem.FullFileSystem
	logger zerolog.Logger
}

// New creates an engine over the given filesystem.
func New(fsys filesystem.FullFileSystem, logger zerolog.Logger) *Engine {
	return &Engine{
		fsys:   fsys,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// PreviewRename computes the proposed name for every file. Pure with
// respect to the filesystem: nothing is renamed here.
func (e *Engine) PreviewRename(files []FileInfo, rules normalize.Rules) []RenamePreview {
	previews := make([]RenamePreview, 0, len(files))
	for _, f := range files {
		var normalized string
		if f.IsDir {
			normalized = normalize.Text(f.Name, rules)
		} else {
			normalized = normalize.Filename(f.Name, rules)
		}
		if normalized == "" {
			normalized = f.Name
		}

		p := RenamePreview{File: f}
		p.SetNormalizedName(normalized)

		if p.HasChanges() {
			p.AddChange(fmt.Sprintf("normalized: %s -> %s", f.Name, normalized))
		}
		if len(normalized) > rules.MaxFilenameLength {
			p.AddWarning(fmt.Sprintf("filename exceeds max length (%d)", rules.MaxFilenameLength))
		}
		if f.ReadOnly {
			p.AddWarning("file is read-only")
		}
		previews = append(previews, p)
	}
	return previews
}

// DetectAndResolveConflicts resolves duplicate targets within the
// batch by numbered suffixes, probes the live filesystem for occupied
// targets, and orders rename chains so that a file whose target is
// another batch member's current name runs after that member vacates.
func (e *Engine) DetectAndResolveConflicts(previews []RenamePreview) []RenamePreview {
	// Pass 1: duplicates within the batch get numbered suffixes.
	taken := make(map[string]int, len(previews))
	for i := range previews {
		p := &previews[i]
		target := p.NormalizedPath
		if n, dup := taken[target]; dup {
			unique := numberedName(p.NormalizedName, n)
			p.AddChange(fmt.Sprintf("resolved duplicate name: %s -> %s", p.NormalizedName, unique))
			taken[target]++
			p.SetNormalizedName(unique)
			taken[p.NormalizedPath] = 1
		} else {
			taken[target] = 1
		}
	}

	// Pass 2: live filesystem conflicts. A target held by another batch
	// member that will itself be renamed away is an ordering problem,
	// not a naming one.
	sources := make(map[string]int, len(previews))
	for i := range previews {
		sources[previews[i].File.Path] = i
	}

	var edges []toposort.Edge
	for i := range previews {
		p := &previews[i]
		if !p.HasChanges() || p.NormalizedPath == p.File.Path {
			continue
		}
		if !filesystem.Exists(e.fsys, p.NormalizedPath) {
			continue
		}
		if j, inBatch := sources[p.NormalizedPath]; inBatch && previews[j].HasChanges() {
			// occupant vacates first
			edges = append(edges, toposort.Edge{previews[j].File.Path, p.File.Path})
			continue
		}
		e.resolveOccupiedTarget(p)
	}

	if len(edges) == 0 {
		return previews
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		// Rename cycle (e.g. a<->b swap). Break it by suffixing every
		// chain-dependent target instead of reordering.
		e.logger.Warn().Err(err).Msg("rename chain contains a cycle, falling back to numbered names")
		for i := range previews {
			p := &previews[i]
			if !p.HasChanges() {
				continue
			}
			if _, inBatch := sources[p.NormalizedPath]; inBatch && p.NormalizedPath != p.File.Path {
				e.resolveOccupiedTarget(p)
			}
		}
		return previews
	}

	// Rebuild in dependency order, then append previews that were not
	// part of any chain in their original order.
	ordered := make([]RenamePreview, 0, len(previews))
	seen := make(map[string]bool, len(previews))
	for _, node := range sorted {
		src, ok := node.(string)
		if !ok {
			continue
		}
		if idx, exists := sources[src]; exists && !seen[src] {
			ordered = append(ordered, previews[idx])
			seen[src] = true
		}
	}
	for i := range previews {
		if !seen[previews[i].File.Path] {
			ordered = append(ordered, previews[i])
		}
	}
	return ordered
}

// resolveOccupiedTarget probes numbered alternatives until a free path
// is found.
func (e *Engine) resolveOccupiedTarget(p *RenamePreview) {
	for counter := 1; counter <= 9999; counter++ {
		unique := numberedName(p.NormalizedName, counter)
		uniquePath := path.Join(p.File.Dir, unique)
		if !filesystem.Exists(e.fsys, uniquePath) {
			p.AddChange(fmt.Sprintf("resolved filesystem conflict: %s", unique))
			p.SetNormalizedName(unique)
			return
		}
	}
	p.AddWarning("could not resolve filesystem conflict")
	p.WillOverwrite = true
}

// ExecuteBatchRename renames every preview in order, recording one
// FileOperationResult per file. Per-file failures are recorded and the
// batch continues; only cancellation stops the loop, returning the
// partial result together with a *core.CancelledError. Terminal result
// status is the caller's to set.
func (e *Engine) ExecuteBatchRename(previews []RenamePreview, opts Options, onProgress core.ProgressFunc, token *core.CancellationToken) (*core.OperationResult, error) {
	if token == nil {
		token = core.NewCancellationToken()
	}
	result := core.NewOperationResult(opts.OperationID, opts.SourceDir, len(previews), opts.DryRun)
	result.Status = core.StatusRunning
	total := len(previews)

	for i := range previews {
		p := &previews[i]
		if err := token.Check(); err != nil {
			e.logger.Info().
				Str("operation_id", opts.OperationID).
				Int("processed", i).
				Msg("batch rename cancelled")
			return result, err
		}
		if onProgress != nil {
			onProgress(float64(i)/float64(total)*100, p.File.Name)
		}
		result.RecordFile(e.executeSingleRename(p, opts))
	}

	if onProgress != nil {
		onProgress(100.0, "operation completed")
	}
	return result, nil
}

func (e *Engine) executeSingleRename(p *RenamePreview, opts Options) core.FileOperationResult {
	start := time.Now()
	fr := core.FileOperationResult{
		Path:         p.File.Path,
		OriginalName: p.File.Name,
		NewName:      p.NormalizedName,
	}
	skip := func(reason string) core.FileOperationResult {
		fr.Skipped = true
		fr.ErrorMessage = reason
		fr.Duration = time.Since(start)
		if opts.Recorder != nil {
			opts.Recorder.RecordSkip(opts.OperationID)
		}
		e.logger.Debug().Str("file", p.File.Name).Str("reason", reason).Msg("file skipped")
		return fr
	}

	if !p.HasChanges() {
		return skip("no changes needed")
	}
	if p.WillOverwrite && !opts.Rules.ConfirmOverwrite {
		return skip("would overwrite existing file")
	}
	if p.File.ReadOnly && opts.Rules.SkipReadonlyFiles {
		return skip("file is read-only")
	}

	if !opts.DryRun {
		if err := e.fsys.Rename(p.File.Path, p.NormalizedPath); err != nil {
			ferr := core.ClassifyFSError("rename", p.File.Path, err)
			fr.ErrorMessage = ferr.Error()
			fr.Duration = time.Since(start)
			if opts.Recorder != nil {
				opts.Recorder.RecordFailure(opts.OperationID, p.File.Path, p.NormalizedPath, ferr)
			}
			e.logger.Error().Err(err).
				Str("from", p.File.Path).
				Str("to", p.NormalizedPath).
				Msg("rename failed")
			return fr
		}
	}

	fr.Success = true
	fr.Duration = time.Since(start)
	if opts.Recorder != nil {
		opts.Recorder.RecordSuccess(opts.OperationID)
	}
	e.logger.Debug().
		Str("from", p.File.Name).
		Str("to", p.NormalizedName).
		Bool("dry_run", opts.DryRun).
		Msg("file renamed")
	return fr
}

func numberedName(name string, counter int) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s_%d%s", stem, counter, ext)
}
