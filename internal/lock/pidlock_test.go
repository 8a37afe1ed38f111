package lock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquireWritesOwnPID(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "tranq.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() { _ = l.Release() })

	pid, ok := HolderPID(lockPath)
	if !ok {
		t.Fatalf("expected readable PID in lock file")
	}
	if pid != os.Getpid() {
		t.Fatalf("expected pid %d, got %d", os.Getpid(), pid)
	}
}

func TestReacquireAfterRelease(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "tranq.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("second Acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "tranq.lock")
	l, err := Acquire(lockPath)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestHolderPIDRejectsGarbage(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "tranq.lock")
	if err := os.WriteFile(lockPath, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, ok := HolderPID(lockPath); ok {
		t.Fatalf("expected failure on garbage lock file")
	}

	// A sane file parses.
	if err := os.WriteFile(lockPath, []byte(strings.TrimSpace(strconv.Itoa(12345))+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	pid, ok := HolderPID(lockPath)
	if !ok || pid != 12345 {
		t.Fatalf("expected pid 12345, got %d ok=%v", pid, ok)
	}
}
