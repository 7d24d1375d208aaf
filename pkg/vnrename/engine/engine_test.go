package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
	"github.com/vnrename/vnrename/pkg/vnrename/filesystem"
	"github.com/vnrename/vnrename/pkg/vnrename/normalize"
)

func newTestEngine(t *testing.T) (*Engine, *filesystem.TestFileSystem) {
	t.Helper()
	fsys := filesystem.NewTestFileSystem()
	return New(fsys, zerolog.Nop()), fsys
}

func addFiles(fsys *filesystem.TestFileSystem, names ...string) []FileInfo {
	mtime := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	files := make([]FileInfo, 0, len(names))
	for _, name := range names {
		fsys.AddFile(name, []byte("content"), 0o644, mtime)
		files = append(files, FileInfo{
			Name:    name,
			Path:    name,
			Dir:     ".",
			ModTime: mtime,
		})
	}
	return files
}

func TestPreviewRename(t *testing.T) {
	eng, fsys := newTestEngine(t)
	files := addFiles(fsys, "Tài Liệu.txt", "clean file.txt")
	rules := normalize.DefaultRules()

	previews := eng.PreviewRename(files, rules)
	if len(previews) != 2 {
		t.Fatalf("got %d previews, want 2", len(previews))
	}

	if got := previews[0].NormalizedName; got != "tai lieu.txt" {
		t.Errorf("normalized name = %q, want %q", got, "tai lieu.txt")
	}
	if !previews[0].HasChanges() {
		t.Error("Vietnamese filename should report changes")
	}
	if previews[1].HasChanges() {
		t.Errorf("clean filename should not report changes, proposed %q", previews[1].NormalizedName)
	}
}

func TestDetectAndResolveConflictsDuplicateTargets(t *testing.T) {
	eng, fsys := newTestEngine(t)
	// Both normalize to "tai lieu.txt".
	files := addFiles(fsys, "Tài Liệu.txt", "Tài  Liệu.txt")

	previews := eng.DetectAndResolveConflicts(eng.PreviewRename(files, normalize.DefaultRules()))

	targets := map[string]int{}
	for _, p := range previews {
		targets[p.NormalizedPath]++
	}
	for target, n := range targets {
		if n > 1 {
			t.Errorf("target %q proposed %d times", target, n)
		}
	}
}

func TestDetectAndResolveConflictsChainOrdering(t *testing.T) {
	eng, fsys := newTestEngine(t)
	// "B.txt" normalizes to "b.txt"; "b.TXT" is unrelated. Build a
	// chain instead: "A.txt" -> "a.txt" while "a.txt" is currently
	// occupied by a batch member that renames to "x.txt".
	mtime := time.Now()
	fsys.AddFile("A@.txt", []byte("1"), 0o644, mtime)
	fsys.AddFile("a.txt", []byte("2"), 0o644, mtime)

	files := []FileInfo{
		{Name: "A@.txt", Path: "A@.txt", Dir: "."},
		{Name: "a.txt", Path: "a.txt", Dir: "."},
	}
	rules := normalize.DefaultRules()
	rules.CustomReplacements = map[string]string{"@": ""}

	previews := eng.PreviewRename(files, rules)
	// "A@.txt" -> "a.txt" (occupied by the second file), which itself
	// has no changes, so the occupied target must get a numbered name.
	resolved := eng.DetectAndResolveConflicts(previews)

	var first *RenamePreview
	for i := range resolved {
		if resolved[i].File.Path == "A@.txt" {
			first = &resolved[i]
		}
	}
	if first == nil {
		t.Fatal("preview for A@.txt missing after resolution")
	}
	if first.NormalizedPath == "a.txt" {
		t.Error("target still collides with an existing file that stays in place")
	}
	if !strings.HasPrefix(first.NormalizedName, "a_") {
		t.Errorf("expected a numbered fallback name, got %q", first.NormalizedName)
	}
}

func TestDetectAndResolveConflictsSwapCycle(t *testing.T) {
	eng, fsys := newTestEngine(t)
	mtime := time.Now()
	fsys.AddFile("a.txt", []byte("1"), 0o644, mtime)
	fsys.AddFile("b.txt", []byte("2"), 0o644, mtime)

	previews := []RenamePreview{
		{File: FileInfo{Name: "a.txt", Path: "a.txt", Dir: "."}},
		{File: FileInfo{Name: "b.txt", Path: "b.txt", Dir: "."}},
	}
	previews[0].SetNormalizedName("b.txt")
	previews[1].SetNormalizedName("a.txt")

	resolved := eng.DetectAndResolveConflicts(previews)

	targets := map[string]bool{}
	for _, p := range resolved {
		if targets[p.NormalizedPath] {
			t.Errorf("cycle resolution left duplicate target %q", p.NormalizedPath)
		}
		targets[p.NormalizedPath] = true
		// The cycle breaker gives up on the swap and picks free
		// numbered names instead of reordering.
		if filesystem.Exists(fsys, p.NormalizedPath) {
			t.Errorf("target %q is still an occupied path", p.NormalizedPath)
		}
	}
}

func TestExecuteBatchRename(t *testing.T) {
	eng, fsys := newTestEngine(t)
	files := addFiles(fsys, "Tài Liệu.txt", "Báo Cáo.pdf", "clean.txt")
	rules := normalize.DefaultRules()

	previews := eng.DetectAndResolveConflicts(eng.PreviewRename(files, rules))
	result, err := eng.ExecuteBatchRename(previews, Options{
		OperationID: "op-1",
		Rules:       rules,
	}, nil, core.NewCancellationToken())
	if err != nil {
		t.Fatalf("ExecuteBatchRename: %v", err)
	}

	if result.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", result.SuccessCount)
	}
	if result.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", result.SkippedCount)
	}
	if !filesystem.Exists(fsys, "tai lieu.txt") || !filesystem.Exists(fsys, "bao cao.pdf") {
		t.Error("renamed files not found on the filesystem")
	}
	if filesystem.Exists(fsys, "Tài Liệu.txt") {
		t.Error("original file still present after rename")
	}
}

func TestExecuteBatchRenameDryRun(t *testing.T) {
	eng, fsys := newTestEngine(t)
	files := addFiles(fsys, "Tài Liệu.txt")
	rules := normalize.DefaultRules()

	previews := eng.PreviewRename(files, rules)
	result, err := eng.ExecuteBatchRename(previews, Options{
		OperationID: "op-dry",
		DryRun:      true,
		Rules:       rules,
	}, nil, nil)
	if err != nil {
		t.Fatalf("ExecuteBatchRename: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", result.SuccessCount)
	}
	if !filesystem.Exists(fsys, "Tài Liệu.txt") {
		t.Error("dry run must not touch the filesystem")
	}
	if filesystem.Exists(fsys, "tai lieu.txt") {
		t.Error("dry run created the target file")
	}
}

func TestExecuteBatchRenameCancelledMidBatch(t *testing.T) {
	eng, fsys := newTestEngine(t)
	files := addFiles(fsys, "Ảnh 1.jpg", "Ảnh 2.jpg", "Ảnh 3.jpg")
	rules := normalize.DefaultRules()
	previews := eng.DetectAndResolveConflicts(eng.PreviewRename(files, rules))

	token := core.NewCancellationToken()
	processed := 0
	onProgress := func(pct float64, file string) {
		processed++
		if processed == 2 {
			token.RequestCancellation("stop now")
		}
	}

	result, err := eng.ExecuteBatchRename(previews, Options{
		OperationID: "op-cancel",
		Rules:       rules,
	}, onProgress, token)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if !core.IsCancelled(err) {
		t.Fatalf("got %T, want *core.CancelledError", err)
	}
	if got := result.SuccessCount; got != 2 {
		t.Errorf("partial SuccessCount = %d, want 2", got)
	}
}

func TestExecuteBatchRenameSkipsReadonly(t *testing.T) {
	eng, fsys := newTestEngine(t)
	mtime := time.Now()
	fsys.AddFile("Bảo Vệ.txt", []byte("x"), 0o444, mtime)
	files := []FileInfo{{Name: "Bảo Vệ.txt", Path: "Bảo Vệ.txt", Dir: ".", ReadOnly: true}}
	rules := normalize.DefaultRules()

	previews := eng.PreviewRename(files, rules)
	result, err := eng.ExecuteBatchRename(previews, Options{
		OperationID: "op-ro",
		Rules:       rules,
	}, nil, nil)
	if err != nil {
		t.Fatalf("ExecuteBatchRename: %v", err)
	}
	if result.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", result.SkippedCount)
	}
	if !filesystem.Exists(fsys, "Bảo Vệ.txt") {
		t.Error("read-only file was renamed")
	}
}

func TestScanFolder(t *testing.T) {
	fsys := filesystem.NewTestFileSystem()
	mtime := time.Now()
	fsys.AddFile("b.txt", []byte("2"), 0o644, mtime)
	fsys.AddFile("a.txt", []byte("1"), 0o644, mtime)
	fsys.AddFile(".hidden", []byte("h"), 0o644, mtime)

	files, err := ScanFolder(fsys, ".", ScanOptions{})
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2 (hidden excluded)", len(files))
	}
	if files[0].Path != "a.txt" || files[1].Path != "b.txt" {
		t.Errorf("files not sorted: %v, %v", files[0].Path, files[1].Path)
	}

	withHidden, err := ScanFolder(fsys, ".", ScanOptions{IncludeHidden: true})
	if err != nil {
		t.Fatalf("ScanFolder: %v", err)
	}
	if len(withHidden) != 3 {
		t.Errorf("got %d files with hidden included, want 3", len(withHidden))
	}
}
