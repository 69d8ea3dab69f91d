// Package store is the key-value layer every game collection is persisted
// through. Values are JSON documents stored under fixed keys; each key
// carries a version so read-modify-write cycles can detect concurrent
// writers instead of silently losing updates.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pokewar-server/internal/domain"
)

// AnyVersion makes Put skip the version check
const AnyVersion int64 = -1

// ErrVersionConflict is returned by Put when the stored version moved on
var ErrVersionConflict = errors.New("version conflict")

// Entry is a stored document and its version. A missing key has a nil Data
// and version 0.
type Entry struct {
	Data    []byte
	Version int64
}

// Backend is a versioned key-value datastore
type Backend interface {
	// Get returns the entry under key, or a zero Entry if the key is absent.
	Get(ctx context.Context, key string) (Entry, error)

	// Put stores data if the current version equals expected (0 means the
	// key must not exist) and returns the new version. Passing AnyVersion
	// writes unconditionally.
	Put(ctx context.Context, key string, data []byte, expected int64) (int64, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// KV wraps a Backend with JSON encoding and degrade-on-failure semantics:
// storage outages are logged and never surfaced to callers.
type KV struct {
	backend    Backend
	maxRetries int
	logger     *slog.Logger
}

// New creates a KV over backend. maxRetries bounds how often Update
// re-runs after losing a version race.
func New(backend Backend, maxRetries int, logger *slog.Logger) *KV {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &KV{
		backend:    backend,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Backend returns the underlying datastore
func (s *KV) Backend() Backend {
	return s.backend
}

// Read returns the value stored under key, or fallback if the key is
// absent, unparseable, or the backend is unavailable.
func Read[T any](ctx context.Context, s *KV, key string, fallback T) T {
	entry, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Error("failed to read from storage", "key", key, "error", err)
		return fallback
	}
	if entry.Data == nil {
		return fallback
	}

	var value T
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		s.logger.Error("failed to decode stored value", "key", key, "error", err)
		return fallback
	}
	return value
}

// Write stores value under key unconditionally. Failures are logged and
// the write becomes a no-op.
func (s *KV) Write(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("failed to encode value for storage", "key", key, "error", err)
		return
	}
	if _, err := s.backend.Put(ctx, key, data, AnyVersion); err != nil {
		s.logger.Error("failed to write to storage", "key", key, "error", err)
	}
}

// Remove deletes key. Failures are logged and ignored.
func (s *KV) Remove(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.logger.Error("failed to remove from storage", "key", key, "error", err)
	}
}

// Update runs an optimistic read-modify-write on key. fn receives the
// current value (fallback when absent) and returns the value to store; it
// may run more than once, so it must not have side effects. An error from
// fn aborts the update without writing and is returned as is.
//
// If the backend cannot be read, fn runs against fallback so the caller
// still gets validation and a result, but nothing is written.
func Update[T any](ctx context.Context, s *KV, key string, fallback T, fn func(T) (T, error)) (T, error) {
	var zero T

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		entry, err := s.backend.Get(ctx, key)
		if err != nil {
			s.logger.Error("storage unavailable, change will not be persisted", "key", key, "error", err)
			return fn(fallback)
		}

		current := fallback
		if entry.Data != nil {
			var decoded T
			if err := json.Unmarshal(entry.Data, &decoded); err != nil {
				s.logger.Error("failed to decode stored value, replacing it", "key", key, "error", err)
			} else {
				current = decoded
			}
		}

		next, err := fn(current)
		if err != nil {
			return zero, err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return zero, fmt.Errorf("encoding %s: %w", key, err)
		}

		_, err = s.backend.Put(ctx, key, data, entry.Version)
		if errors.Is(err, ErrVersionConflict) {
			s.logger.Debug("lost update race, retrying", "key", key, "attempt", attempt+1)
			continue
		}
		if err != nil {
			s.logger.Error("failed to write to storage", "key", key, "error", err)
		}
		return next, nil
	}

	s.logger.Warn("giving up after repeated update conflicts", "key", key, "retries", s.maxRetries)
	return zero, domain.ErrConcurrentUpdate
}
