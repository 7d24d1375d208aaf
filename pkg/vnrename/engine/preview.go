package engine

import "path"

// RenamePreview is the proposed outcome for one file before execution.
type RenamePreview struct {
	File           FileInfo
	NormalizedName string
	NormalizedPath string
	WillOverwrite  bool
	Changes        []string
	Warnings       []string
}

// HasChanges reports whether executing this preview would rename the file.
func (p *RenamePreview) HasChanges() bool {
	return p.NormalizedName != p.File.Name
}

// SetNormalizedName updates the proposal, keeping path and name in sync.
func (p *RenamePreview) SetNormalizedName(name string) {
	p.NormalizedName = name
	p.NormalizedPath = path.Join(p.File.Dir, name)
}

// AddChange records a human-readable description of one applied step.
func (p *RenamePreview) AddChange(desc string) {
	p.Changes = append(p.Changes, desc)
}

// AddWarning records a non-fatal finding about this preview.
func (p *RenamePreview) AddWarning(desc string) {
	p.Warnings = append(p.Warnings, desc)
}
