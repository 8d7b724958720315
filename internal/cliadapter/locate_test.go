package cliadapter_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ladzaretti/codex-switch/internal/cliadapter"
	"github.com/ladzaretti/codex-switch/internal/vaulterrors"
)

func writeFakeBinary(t *testing.T, dir, name string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake-binary probing is exercised on POSIX only")
	}

	path := filepath.Join(dir, name)

	script := "#!/bin/sh\nexit 0\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}

	return path
}

func TestAdapter_LocateFindsExecutableOnPath(t *testing.T) {
	dir := t.TempDir()
	writeFakeBinary(t, dir, "codex")

	t.Setenv("PATH", dir)

	a := cliadapter.New()

	got, err := a.Locate(t.Context())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}

	want := filepath.Join(dir, "codex")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAdapter_LocateFailsWithNoCandidate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PATH", dir)

	a := cliadapter.New()

	_, err := a.Locate(t.Context())
	if !errors.Is(err, vaulterrors.New(vaulterrors.CliNotFound, "", nil)) {
		t.Fatalf("expected CliNotFound, got %v", err)
	}
}

func TestAdapter_LocateCachesResult(t *testing.T) {
	dir := t.TempDir()
	writeFakeBinary(t, dir, "codex")
	t.Setenv("PATH", dir)

	a := cliadapter.New()

	first, err := a.Locate(t.Context())
	if err != nil {
		t.Fatalf("locate: %v", err)
	}

	// Removing the PATH entry after the first call proves the second
	// call returns the cached path rather than re-probing.
	t.Setenv("PATH", t.TempDir())

	second, err := a.Locate(t.Context())
	if err != nil {
		t.Fatalf("second locate: %v", err)
	}

	if first != second {
		t.Errorf("expected cached path, got %q then %q", first, second)
	}
}
