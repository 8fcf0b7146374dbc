package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileStore persists each checkpoint as one JSON file named
// {pipeline}_{session}.json under a base directory. The file holds the
// state document verbatim. Writes go through a temp file and rename so a
// crash mid-write never leaves a truncated checkpoint behind.
type FileStore struct {
	dir    string
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewFileStore creates a file-backed checkpoint store rooted at dir,
// creating the directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("checkpoint directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	return &FileStore{
		dir:    dir,
		logger: logger.With(zap.String("component", "checkpoint_file")),
	}, nil
}

// Name implements Store.
func (s *FileStore) Name() string { return "file" }

// path returns the checkpoint file location for a pipeline/session pair.
func (s *FileStore) path(pipeline, session string) string {
	return filepath.Join(s.dir, pipeline+"_"+session+".json")
}

// Save writes the checkpoint atomically, replacing any previous one.
// Checkpoints can carry prompts and model output, so files are 0600.
func (s *FileStore) Save(_ context.Context, pipeline, session string, state any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	path := s.path(pipeline, session)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved",
		zap.String("pipeline", pipeline),
		zap.String("session", session),
		zap.Int("bytes", len(data)))

	return nil
}

// Load reads a checkpoint into the value pointed to by into.
func (s *FileStore) Load(_ context.Context, pipeline, session string, into any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(pipeline, session))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read checkpoint: %w", err)
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return nil
}

// List returns stored checkpoints, newest first, optionally filtered by
// pipeline name. Unreadable files are skipped with a warning rather than
// failing the whole listing.
func (s *FileStore) List(_ context.Context, pipeline string) ([]Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	refs := make([]Ref, 0, len(matches))
	for _, path := range matches {
		ref, err := s.refOf(path)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", zap.String("path", path), zap.Error(err))
			continue
		}
		if pipeline != "" && ref.Pipeline != pipeline {
			continue
		}
		refs = append(refs, ref)
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
	return refs, nil
}

// checkpointMeta is the slice of state the listing needs to attribute a
// file to its session.
type checkpointMeta struct {
	SessionID string `json:"session_id"`
}

// refOf reconstructs the pipeline/session pair of a checkpoint file. State
// written by the pipeline runner embeds its session id, which splits the
// file name unambiguously; for foreign files the split falls back to the
// last underscore.
func (s *FileStore) refOf(path string) (Ref, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Ref{}, err
	}

	base := strings.TrimSuffix(filepath.Base(path), ".json")
	pipeline, session := splitKey(base)

	data, err := os.ReadFile(path)
	if err != nil {
		return Ref{}, err
	}
	var meta checkpointMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Ref{}, fmt.Errorf("not a checkpoint document: %w", err)
	}
	if meta.SessionID != "" {
		if rest, ok := strings.CutSuffix(base, "_"+meta.SessionID); ok {
			pipeline, session = rest, meta.SessionID
		}
	}

	if pipeline == "" || session == "" {
		return Ref{}, fmt.Errorf("cannot determine checkpoint key from %q", base)
	}
	return Ref{Pipeline: pipeline, Session: session, UpdatedAt: info.ModTime()}, nil
}

// splitKey splits a file base name at the last underscore.
func splitKey(base string) (pipeline, session string) {
	idx := strings.LastIndex(base, "_")
	if idx <= 0 {
		return "", ""
	}
	return base[:idx], base[idx+1:]
}

// Delete removes a checkpoint. Deleting a missing checkpoint returns
// ErrNotFound.
func (s *FileStore) Delete(_ context.Context, pipeline, session string) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	err := os.Remove(s.path(pipeline, session))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Close marks the store closed. The files stay on disk.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

var _ Store = (*FileStore)(nil)
