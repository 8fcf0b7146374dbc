package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

type memKey struct {
	pipeline string
	session  string
}

type memItem struct {
	data      []byte
	updatedAt time.Time
}

// MemoryStore keeps checkpoints in process memory. State is serialized on
// Save, so later mutations of the caller's value never leak into the store.
// Intended for tests and one-shot runs.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[memKey]memItem
	closed bool
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[memKey]memItem),
	}
}

// Name implements Store.
func (s *MemoryStore) Name() string { return "memory" }

// Save stores a serialized copy of state.
func (s *MemoryStore) Save(_ context.Context, pipeline, session string, state any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	s.items[memKey{pipeline, session}] = memItem{data: data, updatedAt: time.Now()}
	return nil
}

// Load reads a checkpoint into the value pointed to by into.
func (s *MemoryStore) Load(_ context.Context, pipeline, session string, into any) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrStoreClosed
	}

	item, ok := s.items[memKey{pipeline, session}]
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(item.data, into); err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	return nil
}

// List returns stored checkpoints, newest first, optionally filtered by
// pipeline name.
func (s *MemoryStore) List(_ context.Context, pipeline string) ([]Ref, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	refs := make([]Ref, 0, len(s.items))
	for key, item := range s.items {
		if pipeline != "" && key.pipeline != pipeline {
			continue
		}
		refs = append(refs, Ref{Pipeline: key.pipeline, Session: key.session, UpdatedAt: item.updatedAt})
	}

	sort.Slice(refs, func(i, j int) bool {
		return refs[i].UpdatedAt.After(refs[j].UpdatedAt)
	})
	return refs, nil
}

// Delete removes a checkpoint.
func (s *MemoryStore) Delete(_ context.Context, pipeline, session string) error {
	if err := validateKeys(pipeline, session); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, ok := s.items[memKey{pipeline, session}]; !ok {
		return ErrNotFound
	}
	delete(s.items, memKey{pipeline, session})
	return nil
}

// Close marks the store closed and drops all checkpoints.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.items = nil
	return nil
}

var _ Store = (*MemoryStore)(nil)
