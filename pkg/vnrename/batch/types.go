package batch

import (
	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/engine"
	"github.com/vnrename/vnrename/pkg/vnrename/normalize"
)

// Request describes one batch rename to execute.
type Request struct {
	Files     []engine.FileInfo
	Rules     normalize.Rules
	DryRun    bool
	SourceDir string
}

// Progress is a snapshot pushed to the caller while a batch runs.
// Percentages are non-decreasing per operation.
type Progress struct {
	OperationID    string
	Percentage     float64
	CurrentFile    string
	ProcessedFiles int
	TotalFiles     int
	SuccessCount   int
	ErrorCount     int
	SkippedCount   int
}

// Callbacks receive operation events on the monitor goroutine, never
// on the worker. Panics inside a callback are recovered and logged.
type Callbacks struct {
	OnProgress func(Progress)
	OnComplete func(core.OperationResult)
	OnError    func(message string)
}

// RenameEngine is the forward-path collaborator that owns the actual
// filesystem mutation. engine.Engine implements it.
type RenameEngine interface {
	PreviewRename(files []engine.FileInfo, rules normalize.Rules) []engine.RenamePreview
	DetectAndResolveConflicts(previews []engine.RenamePreview) []engine.RenamePreview
	ExecuteBatchRename(previews []engine.RenamePreview, opts engine.Options, onProgress core.ProgressFunc, token *core.CancellationToken) (*core.OperationResult, error)
}

// Progress scale boundaries: preview and conflict resolution, actual
// renames, then history persistence.
const (
	progressSetupEnd     = 5.0
	progressExecutionEnd = 95.0
)
