package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnrename/vnrename/pkg/vnrename/core"
)

func newStore(t *testing.T, path string) *FileStore {
	t.Helper()
	store, err := NewFileStore(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

func sampleOperation(id string, createdAt time.Time) OperationRecord {
	return OperationRecord{
		OperationID:     id,
		OperationName:   "batch rename",
		SourceDirectory: "/docs",
		TotalFiles:      2,
		SuccessfulFiles: 2,
		Status:          core.StatusCompleted,
		CreatedAt:       createdAt,
		StartedAt:       createdAt,
		CompletedAt:     createdAt,
		CanBeUndone:     true,
		UndoExpiryTime:  createdAt.Add(UndoRetention),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	store := newStore(t, path)

	now := time.Now()
	files := []FileRecord{
		{OperationID: "op-1", FilePath: "tai lieu.txt", OriginalName: "Tài Liệu.txt", NewName: "tai lieu.txt", Status: FileStatusSuccess, OriginalModifiedTime: now},
		{OperationID: "op-1", FilePath: "skip.txt", OriginalName: "skip.txt", NewName: "skip.txt", Status: FileStatusSkipped},
	}
	if err := store.SaveOperation(sampleOperation("op-1", now), files); err != nil {
		t.Fatalf("SaveOperation: %v", err)
	}

	// A fresh store over the same file sees the same data.
	reopened := newStore(t, path)
	op, err := reopened.GetOperation("op-1")
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if op == nil {
		t.Fatal("operation missing after reopen")
	}
	if op.SourceDirectory != "/docs" || !op.CanBeUndone {
		t.Errorf("reloaded operation lost fields: %+v", op)
	}
	recs, err := reopened.FileOperations("op-1")
	if err != nil || len(recs) != 2 {
		t.Fatalf("FileOperations = %d records (err %v), want 2", len(recs), err)
	}
	if recs[0].OriginalName != "Tài Liệu.txt" {
		t.Errorf("OriginalName = %q after reopen", recs[0].OriginalName)
	}
}

func TestGetOperationUnknown(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	op, err := store.GetOperation("nope")
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if op != nil {
		t.Errorf("GetOperation returned %+v for an unknown ID", op)
	}
}

func TestRecentOperationsOrderAndLimit(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	base := time.Now()
	for i, id := range []string{"op-old", "op-mid", "op-new"} {
		op := sampleOperation(id, base.Add(time.Duration(i)*time.Minute))
		if err := store.SaveOperation(op, nil); err != nil {
			t.Fatalf("SaveOperation: %v", err)
		}
	}

	ops, err := store.RecentOperations(2)
	if err != nil {
		t.Fatalf("RecentOperations: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	if ops[0].OperationID != "op-new" || ops[1].OperationID != "op-mid" {
		t.Errorf("order = %s, %s; want newest first", ops[0].OperationID, ops[1].OperationID)
	}
}

func TestLastUndoable(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	base := time.Now()

	dry := sampleOperation("op-dry", base.Add(3*time.Minute))
	dry.DryRun = true
	other := sampleOperation("op-other", base.Add(2*time.Minute))
	other.SourceDirectory = "/elsewhere"
	ok := sampleOperation("op-ok", base.Add(time.Minute))
	for _, op := range []OperationRecord{dry, other, ok} {
		if err := store.SaveOperation(op, nil); err != nil {
			t.Fatalf("SaveOperation: %v", err)
		}
	}

	// Newest undoable overall skips the dry run.
	got, err := store.LastUndoable("")
	if err != nil {
		t.Fatalf("LastUndoable: %v", err)
	}
	if got == nil || got.OperationID != "op-other" {
		t.Errorf("LastUndoable(\"\") = %v, want op-other", got)
	}

	// Directory filter.
	got, err = store.LastUndoable("/docs")
	if err != nil {
		t.Fatalf("LastUndoable: %v", err)
	}
	if got == nil || got.OperationID != "op-ok" {
		t.Errorf("LastUndoable(/docs) = %v, want op-ok", got)
	}
}

func TestMarkOperationUndone(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	if err := store.SaveOperation(sampleOperation("op-1", time.Now()), nil); err != nil {
		t.Fatalf("SaveOperation: %v", err)
	}

	if err := store.MarkOperationUndone("op-1", "undo-9"); err != nil {
		t.Fatalf("MarkOperationUndone: %v", err)
	}
	op, _ := store.GetOperation("op-1")
	if op.CanBeUndone {
		t.Error("CanBeUndone still set after the undo consumed it")
	}
	if op.UndoOperationID != "undo-9" {
		t.Errorf("UndoOperationID = %q, want undo-9", op.UndoOperationID)
	}

	if err := store.MarkOperationUndone("ghost", "undo-1"); err == nil {
		t.Error("MarkOperationUndone succeeded for an unknown operation")
	}
}

func TestCleanupExpired(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	now := time.Now()

	fresh := sampleOperation("op-fresh", now)
	stale := sampleOperation("op-stale", now.Add(-8*24*time.Hour))
	stale.UndoExpiryTime = now.Add(-24 * time.Hour)
	for _, op := range []OperationRecord{fresh, stale} {
		if err := store.SaveOperation(op, nil); err != nil {
			t.Fatalf("SaveOperation: %v", err)
		}
	}
	if err := store.SaveUndoOperation(UndoRecord{
		UndoOperationID: "undo-old",
		CreatedAt:       now.Add(-8 * 24 * time.Hour),
	}); err != nil {
		t.Fatalf("SaveUndoOperation: %v", err)
	}

	expired, err := store.CleanupExpired(now)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired = %d, want 1", expired)
	}

	op, _ := store.GetOperation("op-stale")
	if op.CanBeUndone {
		t.Error("stale operation still undoable after cleanup")
	}
	op, _ = store.GetOperation("op-fresh")
	if !op.CanBeUndone {
		t.Error("fresh operation lost its undoable flag")
	}
	undos, _ := store.UndoOperations(0)
	if len(undos) != 0 {
		t.Errorf("stale undo record survived cleanup: %v", undos)
	}
}

func TestValidationCache(t *testing.T) {
	store := newStore(t, filepath.Join(t.TempDir(), "history.json"))
	entry := ValidationCacheEntry{
		OperationID:       "op-1",
		FilePath:          "tai lieu.txt",
		IsValid:           false,
		ValidationError:   "file was modified externally",
		LastValidatedTime: time.Now(),
	}
	if err := store.CacheValidation(entry); err != nil {
		t.Fatalf("CacheValidation: %v", err)
	}

	got, err := store.CachedValidation("op-1", "tai lieu.txt")
	if err != nil {
		t.Fatalf("CachedValidation: %v", err)
	}
	if got == nil || got.IsValid || got.ValidationError != "file was modified externally" {
		t.Errorf("CachedValidation = %+v", got)
	}

	miss, err := store.CachedValidation("op-1", "other.txt")
	if err != nil || miss != nil {
		t.Errorf("cache miss returned %+v, %v", miss, err)
	}
}
