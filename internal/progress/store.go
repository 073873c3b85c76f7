// Package progress keeps the durable record of which work items completed.
// The on-disk contract is a single flat JSON file meant to be hand-editable:
// removing an id from processed_ids forces that item to be reprocessed on the
// next run. The store persists before completion is reported, so a crash can
// at worst redo finished work, never forget it (at-least-once bias).
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"meeting-insights-go/internal/types"
)

// FailureNote is an informational journal entry for a failed item. Failed ids
// never block reprocessing; the journal only feeds reporting.
type FailureNote struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Stage     string `json:"stage"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

type fileData struct {
	ProcessedIDs []string      `json:"processed_ids"`
	FailedIDs    []FailureNote `json:"failed_ids"`
}

// Store is the only state shared between workers; every load-modify-persist
// cycle runs under one mutex.
type Store struct {
	mu        sync.Mutex
	path      string
	processed []string
	done      map[string]struct{}
	failed    []FailureNote
	now       func() time.Time
}

// Open reads the progress file at path, creating an empty store if the file
// does not exist. A corrupt file yields a usable empty store plus a
// *types.StoreCorruptError so the caller can warn without aborting the batch.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		done: map[string]struct{}{},
		now:  time.Now,
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, &types.StoreCorruptError{Path: path, Err: err}
	}
	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return s, &types.StoreCorruptError{Path: path, Err: err}
	}
	for _, id := range fd.ProcessedIDs {
		if _, ok := s.done[id]; ok {
			continue
		}
		s.done[id] = struct{}{}
		s.processed = append(s.processed, id)
	}
	s.failed = fd.FailedIDs
	return s, nil
}

// IsDone reports whether id has already been completed.
func (s *Store) IsDone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[id]
	return ok
}

// MarkDone durably records a completed id. Marking an id twice is a no-op.
func (s *Store) MarkDone(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.done[id]; ok {
		return nil
	}
	s.done[id] = struct{}{}
	s.processed = append(s.processed, id)
	return s.save()
}

// MarkFailed journals a per-item failure for reporting.
func (s *Store) MarkFailed(id, title, stage string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	s.failed = append(s.failed, FailureNote{
		ID:        id,
		Title:     title,
		Stage:     stage,
		Error:     msg,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
	return s.save()
}

// DoneCount returns how many ids are marked done.
func (s *Store) DoneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.done)
}

// Snapshot returns the processed ids in insertion order.
func (s *Store) Snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.processed))
	copy(out, s.processed)
	return out
}

// save rewrites the whole snapshot through a temp file + rename so readers
// never observe a torn write. Caller must hold s.mu.
func (s *Store) save() error {
	fd := fileData{ProcessedIDs: s.processed, FailedIDs: s.failed}
	if fd.ProcessedIDs == nil {
		fd.ProcessedIDs = []string{}
	}
	if fd.FailedIDs == nil {
		fd.FailedIDs = []FailureNote{}
	}
	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".progress-*.json")
	if err != nil {
		return fmt.Errorf("create temp progress file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write progress: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync progress: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close progress: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace progress file: %w", err)
	}
	return nil
}
