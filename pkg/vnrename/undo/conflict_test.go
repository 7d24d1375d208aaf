package undo

import (
	"errors"
	"io/fs"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/history"
)

// flakyFS fails the nth rename call, counting from 1. Rollback
// renames keep counting, so only the targeted call fails.
type flakyFS struct {
	*filesystem.TestFileSystem
	failAt int
	calls  int
}

func (f *flakyFS) Rename(oldpath, newpath string) error {
	f.calls++
	if f.calls == f.failAt {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: errors.New("injected failure")}
	}
	return f.TestFileSystem.Rename(oldpath, newpath)
}

func fileSet(fsys *filesystem.TestFileSystem) []string {
	names := make([]string, 0, len(fsys.MapFS))
	for name := range fsys.MapFS {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func undoMappings() []history.FileMapping {
	return []history.FileMapping{
		{CurrentPath: "tai lieu.txt", OriginalName: "Tài Liệu.txt", TargetPath: "Tài Liệu.txt"},
		{CurrentPath: "bao cao.pdf", OriginalName: "Báo Cáo.pdf", TargetPath: "Báo Cáo.pdf"},
		{CurrentPath: "anh dep.jpg", OriginalName: "Ảnh Đẹp.jpg", TargetPath: "Ảnh Đẹp.jpg"},
		{CurrentPath: "ghi chu.md", OriginalName: "Ghi Chú.md", TargetPath: "Ghi Chú.md"},
	}
}

func setupUndoFS() *filesystem.TestFileSystem {
	fsys := filesystem.NewTestFileSystem()
	mtime := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	for _, m := range undoMappings() {
		fsys.AddFile(m.CurrentPath, []byte(m.OriginalName), 0o644, mtime)
	}
	return fsys
}

func TestExecuteRenameSequenceRestoresAll(t *testing.T) {
	fsys := setupUndoFS()
	r := NewConflictResolver(fsys, zerolog.Nop())

	restored, err := r.ExecuteRenameSequence(undoMappings(), core.NewCancellationToken(), nil)
	if err != nil {
		t.Fatalf("ExecuteRenameSequence: %v", err)
	}
	if len(restored) != 4 {
		t.Fatalf("restored %d files, want 4", len(restored))
	}
	for _, m := range undoMappings() {
		if !filesystem.Exists(fsys, m.TargetPath) {
			t.Errorf("%s not restored", m.TargetPath)
		}
		if filesystem.Exists(fsys, m.CurrentPath) {
			t.Errorf("%s still present under its renamed name", m.CurrentPath)
		}
	}
}

func TestAtomicRenameSequenceRollsBackAtEveryIndex(t *testing.T) {
	mappings := undoMappings()
	for k := 1; k <= len(mappings); k++ {
		fsys := setupUndoFS()
		before := fileSet(fsys)
		flaky := &flakyFS{TestFileSystem: fsys, failAt: k}
		r := NewConflictResolver(flaky, zerolog.Nop())

		_, err := r.ExecuteAtomicRenameSequence(mappings, nil, core.NewCancellationToken(), nil)
		if err == nil {
			t.Fatalf("failAt=%d: expected an error", k)
		}
		after := fileSet(fsys)
		if len(before) != len(after) {
			t.Fatalf("failAt=%d: file count changed, %v -> %v", k, before, after)
		}
		for i := range before {
			if before[i] != after[i] {
				t.Errorf("failAt=%d: state diverged, %v -> %v", k, before, after)
				break
			}
		}
	}
}

func TestAtomicRenameSequenceCancellationUnwinds(t *testing.T) {
	fsys := setupUndoFS()
	before := fileSet(fsys)
	r := NewConflictResolver(fsys, zerolog.Nop())
	token := core.NewCancellationToken()

	onProgress := func(pct float64, label string) {
		// Trip the token after the first restore; the next checkpoint
		// must unwind it again.
		token.RequestCancellation("user aborted")
	}

	_, err := r.ExecuteAtomicRenameSequence(undoMappings(), nil, token, onProgress)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if !core.IsCancelled(err) {
		t.Fatalf("got %T (%v), want cancellation", err, err)
	}

	after := fileSet(fsys)
	if strings.Join(before, "|") != strings.Join(after, "|") {
		t.Errorf("cancellation left the filesystem changed:\n before %v\n after  %v", before, after)
	}
}

func TestDetectNameConflicts(t *testing.T) {
	fsys := setupUndoFS()
	// Something else now holds one of the restore targets.
	fsys.AddFile("Tài Liệu.txt", []byte("intruder"), 0o644, time.Now())
	r := NewConflictResolver(fsys, zerolog.Nop())

	conflicts := r.DetectNameConflicts(undoMappings())
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	if conflicts[0].ConflictingPath != "Tài Liệu.txt" {
		t.Errorf("ConflictingPath = %q, want %q", conflicts[0].ConflictingPath, "Tài Liệu.txt")
	}
}

func TestSuggestTempNameIdempotent(t *testing.T) {
	c := &NameConflict{ConflictingPath: "Tài Liệu.txt"}
	first := c.SuggestTempName()
	if !strings.Contains(first, "_undo_temp_") {
		t.Errorf("temp name %q missing the _undo_temp_ marker", first)
	}
	if !strings.HasSuffix(first, ".txt") {
		t.Errorf("temp name %q lost the extension", first)
	}
	if second := c.SuggestTempName(); second != first {
		t.Errorf("SuggestTempName not idempotent: %q then %q", first, second)
	}
}

func TestAtomicSequenceStagesConflictAndKeepsTempFile(t *testing.T) {
	fsys := setupUndoFS()
	fsys.AddFile("Tài Liệu.txt", []byte("intruder"), 0o644, time.Now())
	r := NewConflictResolver(fsys, zerolog.Nop())

	mappings := undoMappings()
	conflicts := r.DetectNameConflicts(mappings)
	if len(conflicts) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(conflicts))
	}
	temp := r.ResolveConflictsWithTempNames(conflicts)

	restored, err := r.ExecuteAtomicRenameSequence(mappings, temp, core.NewCancellationToken(), nil)
	if err != nil {
		t.Fatalf("ExecuteAtomicRenameSequence: %v", err)
	}
	if len(restored) != len(mappings) {
		t.Errorf("restored %d files, want %d", len(restored), len(mappings))
	}

	// The restore target holds the renamed-back file again.
	data, err := fs.ReadFile(fsys, "Tài Liệu.txt")
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(data) != "Tài Liệu.txt" {
		t.Errorf("restored content = %q, want the original file back", data)
	}

	// The intruder survives under its temp name, not deleted.
	tempName := conflicts[0].SuggestTempName()
	intruder, err := fs.ReadFile(fsys, tempName)
	if err != nil {
		t.Fatalf("staged file %q missing: %v", tempName, err)
	}
	if string(intruder) != "intruder" {
		t.Errorf("staged content = %q, want %q", intruder, "intruder")
	}
}
