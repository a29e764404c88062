// Package logsink provides the append-only log files the monitor writes to,
// with the size query and rename-based rotation the retention manager needs.
package logsink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BackupTimeLayout is the timestamp suffix of rotated files:
// monitor.log -> monitor.log.2025-06-10_08-00-00.bak
const BackupTimeLayout = "2006-01-02_15-04-05"

// BackupSuffix is the extension of rotated files.
const BackupSuffix = ".bak"

// Artifact is a log file the retention manager can measure and rotate.
type Artifact interface {
	Path() string
	Size() (int64, error)
	Rotate(now time.Time) (string, error)
}

// BackupPath returns the name a log file is renamed to when rotated at now.
func BackupPath(path string, now time.Time) string {
	return path + "." + now.Format(BackupTimeLayout) + BackupSuffix
}

// BackupGlob matches every rotated copy of path.
func BackupGlob(path string) string {
	return path + ".*" + BackupSuffix
}

// File is the live log file of this process. It implements
// zapcore.WriteSyncer so it can be teed into the logger, and reopens a fresh
// file after Rotate so subsequent writes never land in the backup.
type File struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// Open opens (or creates) path for appending. Failing to open the sink is
// fatal for a cycle, so callers should abort on error.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, f: f}, nil
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}

// Path returns the live file name.
func (s *File) Path() string { return s.path }

// Write appends p. O_APPEND keeps concurrent writers from interleaving
// inside a single line.
func (s *File) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	return s.f.Write(p)
}

// Sync flushes the file to disk.
func (s *File) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	return s.f.Sync()
}

// Size returns the current size of the live file.
func (s *File) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	info, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat log file: %w", err)
	}
	return info.Size(), nil
}

// Rotate renames the live file to its timestamped backup and starts a new one.
func (s *File) Rotate(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := BackupPath(s.path, now)
	if s.f != nil {
		_ = s.f.Sync()
		if err := s.f.Close(); err != nil {
			return "", fmt.Errorf("failed to close log file before rotation: %w", err)
		}
		s.f = nil
	}

	renameErr := os.Rename(s.path, backup)

	f, err := openAppend(s.path)
	if err != nil {
		return "", errors.Join(renameErr, err)
	}
	s.f = f

	if renameErr != nil {
		return "", fmt.Errorf("failed to rotate log file: %w", renameErr)
	}
	return backup, nil
}

// Close closes the live file.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

// Static is a log file written by someone else (for example the cron
// redirect of stdout). It can be measured and renamed but not reopened.
type Static struct {
	path string
}

// NewStatic wraps a log file path that this process does not own.
func NewStatic(path string) *Static { return &Static{path: path} }

func (s *Static) Path() string { return s.path }

func (s *Static) Size() (int64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *Static) Rotate(now time.Time) (string, error) {
	backup := BackupPath(s.path, now)
	if err := os.Rename(s.path, backup); err != nil {
		return "", fmt.Errorf("failed to rotate %s: %w", s.path, err)
	}
	return backup, nil
}
