// Package checkpoint persists pipeline execution state between runs.
//
// A checkpoint is keyed by pipeline name and session id and holds the
// pipeline state as a plain JSON document. After every step a pipeline
// saves its state; a later run with the same keys loads it and skips the
// steps that already completed. Concurrent writers to the same key are not
// coordinated, last writer wins.
//
// Supported backends:
// - Memory: for tests and throwaway runs (default)
// - File: one JSON file per checkpoint, single-node deployments
// - Redis: distributed deployments
// - Database: relational storage through GORM (PostgreSQL, SQLite)
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors
var (
	ErrNotFound    = errors.New("checkpoint not found")
	ErrStoreClosed = errors.New("checkpoint store is closed")
	ErrInvalidKey  = errors.New("invalid checkpoint key")
)

// Ref identifies a stored checkpoint without its payload.
type Ref struct {
	Pipeline  string    `json:"pipeline"`
	Session   string    `json:"session"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists pipeline state keyed by pipeline name and session id.
// Save overwrites any previous checkpoint under the same keys. Load
// unmarshals the stored state into the value pointed to by into and
// returns ErrNotFound when no checkpoint exists. List returns the
// checkpoints of one pipeline, or of all pipelines when pipeline is empty.
// Name identifies the storage kind in logs and metrics.
type Store interface {
	Name() string
	Save(ctx context.Context, pipeline, session string, state any) error
	Load(ctx context.Context, pipeline, session string, into any) error
	List(ctx context.Context, pipeline string) ([]Ref, error)
	Delete(ctx context.Context, pipeline, session string) error
	Close() error
}

// validateKeys rejects keys that are empty or would escape the storage
// namespace when used in a file name or database key.
func validateKeys(pipeline, session string) error {
	for _, key := range []string{pipeline, session} {
		if key == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidKey)
		}
		if strings.ContainsAny(key, "/\\:\x00") {
			return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidKey, key)
		}
	}
	return nil
}
