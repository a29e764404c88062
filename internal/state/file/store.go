// Package file stores state documents as files in a data directory.
//
// Writes go to a temp file (<key>.<random>.tmp) that is fsynced and renamed
// over the target, so readers see either the old or the new document, never a
// partial one. A sidecar <key>.lock file is flock'ed: exclusive for writes,
// shared for reads, which also protects against a second overlapping process.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/MrSnakeDoc/uptimer/internal/state"
)

const (
	// TempSuffix marks in-flight writes; orphans are removed by retention.
	TempSuffix = ".tmp"
	lockSuffix = ".lock"

	lockRetryDelay = 25 * time.Millisecond
)

// Store implements state.Store on top of a directory.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

// New creates the data directory if needed.
func New(dir string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &Store{dir: dir, lockTimeout: lockTimeout}, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if err := state.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key), nil
}

// lock acquires the sidecar lock for path, exclusive or shared.
func (s *Store) lock(ctx context.Context, path string, exclusive bool) (*flock.Flock, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	fl := flock.New(path + lockSuffix)
	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", filepath.Base(path), err)
	}
	if !ok {
		return nil, fmt.Errorf("failed to lock %s: lock busy", filepath.Base(path))
	}
	return fl, nil
}

func unlock(fl *flock.Flock) {
	_ = fl.Unlock()
}

// Read returns the whole document stored under key.
func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	fl, err := s.lock(ctx, path, false)
	if err != nil {
		return nil, err
	}
	defer unlock(fl)

	return readFile(path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, state.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// Write replaces the document stored under key.
func (s *Store) Write(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	fl, err := s.lock(ctx, path, true)
	if err != nil {
		return err
	}
	defer unlock(fl)

	return s.replace(path, data)
}

// Update runs fn on the current document while holding the exclusive lock.
func (s *Store) Update(ctx context.Context, key string, fn state.UpdateFunc) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	fl, err := s.lock(ctx, path, true)
	if err != nil {
		return err
	}
	defer unlock(fl)

	current, err := readFile(path)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		if errors.Is(err, state.ErrSkipWrite) {
			return nil
		}
		return err
	}

	return s.replace(path, next)
}

// Keys lists the documents in the data directory, skipping lock sidecars
// and in-flight temp files.
func (s *Store) Keys(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list data directory: %w", err)
	}
	var keys []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasSuffix(name, lockSuffix) || strings.HasSuffix(name, TempSuffix) {
			continue
		}
		keys = append(keys, name)
	}
	return keys, nil
}

// Delete removes the document and its lock sidecar. Deleting a missing key
// is not an error. A deleted key must not be written concurrently.
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	fl, err := s.lock(ctx, path, true)
	if err != nil {
		return err
	}
	defer unlock(fl)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	_ = os.Remove(path + lockSuffix)
	return nil
}

// Close is a no-op; locks are released per operation.
func (s *Store) Close() error { return nil }

// replace writes data next to path and renames it into place.
func (s *Store) replace(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, filepath.Base(path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
