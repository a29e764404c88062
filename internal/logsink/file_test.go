package logsink

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileWriteAndSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "monitor.log")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = sink.Close() }()

	if _, err := sink.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	size, err := sink.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 6 {
		t.Errorf("Size() = %d, want 6", size)
	}
}

func TestFileRotateStartsFreshFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")

	sink, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = sink.Close() }()

	if _, err := sink.Write([]byte("before rotation\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	now := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)
	backup, err := sink.Rotate(now)
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}

	wantBackup := path + ".2025-06-10_08-00-00.bak"
	if backup != wantBackup {
		t.Errorf("Rotate() = %q, want %q", backup, wantBackup)
	}

	if _, err := sink.Write([]byte("after\n")); err != nil {
		t.Fatalf("Write() after rotation error = %v", err)
	}

	old, err := os.ReadFile(backup)
	if err != nil {
		t.Fatalf("failed to read backup: %v", err)
	}
	if string(old) != "before rotation\n" {
		t.Errorf("backup content = %q", old)
	}

	live, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read live file: %v", err)
	}
	if string(live) != "after\n" {
		t.Errorf("live content = %q, want %q", live, "after\n")
	}
}

func TestStaticRotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auto-monitor.log")
	if err := os.WriteFile(path, []byte("cron output"), 0o644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	s := NewStatic(path)
	size, err := s.Size()
	if err != nil || size != int64(len("cron output")) {
		t.Fatalf("Size() = %d, %v", size, err)
	}

	backup, err := s.Rotate(time.Now())
	if err != nil {
		t.Fatalf("Rotate() error = %v", err)
	}
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("live file should be gone after static rotation, stat err = %v", err)
	}
}

func TestBackupGlobMatchesBackupPath(t *testing.T) {
	path := "/var/lib/uptimer/monitor.log"
	backup := BackupPath(path, time.Now())

	ok, err := filepath.Match(BackupGlob(path), backup)
	if err != nil || !ok {
		t.Errorf("BackupGlob(%q) does not match %q (err=%v)", path, backup, err)
	}
}
