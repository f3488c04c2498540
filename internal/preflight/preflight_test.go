package preflight_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Goosie/nostr-object-identity/internal/preflight"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := preflight.CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := preflight.CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := preflight.CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckFreeSpace("vol", dir, 1); !result.Passed {
		t.Fatalf("expected pass with a 1 byte minimum, got: %s", result.Detail)
	}
	if result := preflight.CheckFreeSpace("vol", dir, ^uint64(0)); result.Passed {
		t.Fatal("expected failure with an impossible minimum")
	}
	if result := preflight.CheckFreeSpace("vol", filepath.Join(dir, "missing"), 1); result.Passed {
		t.Fatal("expected failure for missing path")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	results := preflight.RunAll(context.Background(), cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !preflight.Passed(results) {
		t.Fatalf("expected all checks to pass: %+v", results)
	}
	if preflight.RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
