// Package memory is an in-process state.Store used by tests and dry runs.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/uptimer/internal/state"
)

// Store keeps documents in a map guarded by a single mutex.
type Store struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// New creates an empty store.
func New() *Store {
	return &Store{docs: make(map[string][]byte)}
}

// Read returns a copy of the document stored under key.
func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	if err := state.ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.docs[key]
	if !ok {
		return nil, state.ErrNotFound
	}
	return clone(data), nil
}

// Write replaces the document stored under key.
func (s *Store) Write(_ context.Context, key string, data []byte) error {
	if err := state.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.docs[key] = clone(data)
	return nil
}

// Update runs fn while holding the write lock.
func (s *Store) Update(_ context.Context, key string, fn state.UpdateFunc) error {
	if err := state.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if data, ok := s.docs[key]; ok {
		current = clone(data)
	}

	next, err := fn(current)
	if err != nil {
		if errors.Is(err, state.ErrSkipWrite) {
			return nil
		}
		return err
	}

	s.docs[key] = clone(next)
	return nil
}

// Delete removes key.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, key)
	return nil
}

// Keys returns the stored keys in no particular order.
func (s *Store) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	return keys, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
