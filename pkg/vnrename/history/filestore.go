package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FileStore keeps the whole history in one JSON document on disk.
// Every mutation rewrites the file through a temp-and-rename so a
// crash mid-write never leaves a torn document behind. Access is
// guarded by a single mutex; no filesystem I/O happens outside it, but
// the document is small (history, not data).
type FileStore struct {
	path   string
	logger zerolog.Logger

	mu   sync.Mutex
	data storeData
}

type storeData struct {
	Operations      map[string]OperationRecord      `json:"operation_history"`
	FileOps         map[string][]FileRecord         `json:"file_operations"`
	UndoOps         map[string]UndoRecord           `json:"undo_operations"`
	ValidationCache map[string]ValidationCacheEntry `json:"file_validation_cache"`
}

func newStoreData() storeData {
	return storeData{
		Operations:      make(map[string]OperationRecord),
		FileOps:         make(map[string][]FileRecord),
		UndoOps:         make(map[string]UndoRecord),
		ValidationCache: make(map[string]ValidationCacheEntry),
	}
}

// NewFileStore opens (or creates) the history document at path.
func NewFileStore(path string, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		logger: logger.With().Str("component", "history").Logger(),
		data:   newStoreData(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history store: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("parse history store %s: %w", s.path, err)
	}
	if s.data.Operations == nil {
		s.data = newStoreData()
	}
	return nil
}

// flush must be called with the mutex held.
func (s *FileStore) flush() error {
	raw, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		return fmt.Errorf("write history store: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// SaveOperation implements Store.
func (s *FileStore) SaveOperation(op OperationRecord, files []FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Operations[op.OperationID] = op
	s.data.FileOps[op.OperationID] = append([]FileRecord(nil), files...)
	s.logger.Debug().
		Str("operation_id", op.OperationID).
		Int("file_count", len(files)).
		Msg("operation saved to history")
	return s.flush()
}

// GetOperation implements Store.
func (s *FileStore) GetOperation(operationID string) (*OperationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.data.Operations[operationID]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

// FileOperations implements Store.
func (s *FileStore) FileOperations(operationID string) ([]FileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FileRecord(nil), s.data.FileOps[operationID]...), nil
}

// RecentOperations implements Store.
func (s *FileStore) RecentOperations(limit int) ([]OperationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]OperationRecord, 0, len(s.data.Operations))
	for _, op := range s.data.Operations {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i].CreatedAt.After(ops[j].CreatedAt)
	})
	if limit > 0 && len(ops) > limit {
		ops = ops[:limit]
	}
	return ops, nil
}

// LastUndoable implements Store.
func (s *FileStore) LastUndoable(sourceDir string) (*OperationRecord, error) {
	ops, err := s.RecentOperations(0)
	if err != nil {
		return nil, err
	}
	for _, op := range ops {
		if !op.CanBeUndone || op.DryRun || op.SuccessfulFiles == 0 {
			continue
		}
		if sourceDir != "" && op.SourceDirectory != sourceDir {
			continue
		}
		match := op
		return &match, nil
	}
	return nil, nil
}

// MarkOperationUndone implements Store.
func (s *FileStore) MarkOperationUndone(operationID, undoOperationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.data.Operations[operationID]
	if !ok {
		return fmt.Errorf("operation %s not found in history", operationID)
	}
	op.CanBeUndone = false
	op.UndoOperationID = undoOperationID
	s.data.Operations[operationID] = op
	return s.flush()
}

// SaveUndoOperation implements Store.
func (s *FileStore) SaveUndoOperation(rec UndoRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.UndoOps[rec.UndoOperationID] = rec
	return s.flush()
}

// UndoOperations implements Store.
func (s *FileStore) UndoOperations(limit int) ([]UndoRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]UndoRecord, 0, len(s.data.UndoOps))
	for _, rec := range s.data.UndoOps {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// CleanupExpired implements Store.
func (s *FileStore) CleanupExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for id, op := range s.data.Operations {
		if op.CanBeUndone && !op.UndoExpiryTime.IsZero() && now.After(op.UndoExpiryTime) {
			op.CanBeUndone = false
			s.data.Operations[id] = op
			expired++
		}
	}
	for id, rec := range s.data.UndoOps {
		if now.Sub(rec.CreatedAt) > UndoRetention {
			delete(s.data.UndoOps, id)
		}
	}
	for key, entry := range s.data.ValidationCache {
		if now.Sub(entry.LastValidatedTime) > UndoRetention {
			delete(s.data.ValidationCache, key)
		}
	}
	if expired > 0 {
		s.logger.Info().Int("expired", expired).Msg("expired undo operations cleaned up")
	}
	return expired, s.flush()
}

// CacheValidation implements Store.
func (s *FileStore) CacheValidation(entry ValidationCacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.ValidationCache[cacheKey(entry.OperationID, entry.FilePath)] = entry
	return s.flush()
}

// CachedValidation implements Store.
func (s *FileStore) CachedValidation(operationID, filePath string) (*ValidationCacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.data.ValidationCache[cacheKey(operationID, filePath)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func cacheKey(operationID, filePath string) string {
	return operationID + "\x00" + filePath
}

// UndoRetention is how long after completion an operation stays
// undoable.
const UndoRetention = 7 * 24 * time.Hour
