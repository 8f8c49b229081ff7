package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"crosspost/internal/dispatch"
	"crosspost/internal/verify"
	"crosspost/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Layout under the configured directory:
//   - <run_id>.json  (one complete Record per run)
//   - latest         (id of the most recently saved run)
//
// Writes go through a temp file and rename so a crash never leaves a
// half-written record behind.
type fileStore struct {
	dir string
	log logx.Logger

	mu sync.Mutex
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{dir: dir, log: log}, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) SaveBatch(ctx context.Context, batch *dispatch.Batch) error {
	_ = ctx
	if batch == nil || batch.RunID == "" {
		return errors.New("batch has no run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep existing checks when a batch is re-saved.
	rec := Record{Batch: batch}
	if old, err := s.readLocked(batch.RunID); err == nil {
		rec.Checks = old.Checks
	}
	if err := s.writeLocked(batch.RunID, rec); err != nil {
		return err
	}
	return s.writeRaw("latest", []byte(batch.RunID))
}

func (s *fileStore) SaveChecks(ctx context.Context, checks verify.CheckSet) error {
	_ = ctx
	if checks.RunID == "" {
		return errors.New("check set has no run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readLocked(checks.RunID)
	if err != nil {
		return err
	}
	rec.Checks = &checks
	return s.writeLocked(checks.RunID, rec)
}

func (s *fileStore) GetRun(ctx context.Context, runID string) (Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(runID)
}

func (s *fileStore) LatestRunID(ctx context.Context) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(filepath.Join(s.dir, "latest"))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func (s *fileStore) readLocked(runID string) (Record, error) {
	b, err := os.ReadFile(s.runPath(runID))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *fileStore) writeLocked(runID string, rec Record) error {
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return s.writeRaw(runID+".json", b)
}

func (s *fileStore) writeRaw(name string, b []byte) error {
	final := filepath.Join(s.dir, name)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

func (s *fileStore) runPath(runID string) string {
	// Run ids are UUIDs; Base strips anything path-like just in case.
	return filepath.Join(s.dir, filepath.Base(runID)+".json")
}
