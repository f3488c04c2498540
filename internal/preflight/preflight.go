package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/Goosie/nostr-object-identity/internal/config"
	"github.com/Goosie/nostr-object-identity/internal/registry"
)

// MinFreeBytes is the free space below which the data directory check fails.
const MinFreeBytes = 64 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every preflight check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, MinFreeBytes),
	}
	results = append(results, CheckRegistry(ctx, cfg))
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minFree bytes available to unprivileged users.
func CheckFreeSpace(name, path string, minFree uint64) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	detail := fmt.Sprintf("%s (%d MiB free)", path, free>>20)
	if free < minFree {
		return Result{Name: name, Detail: detail + fmt.Sprintf(", need %d MiB", minFree>>20)}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckRegistry opens the registry and reports its size. It fails when the
// database was written by another schema or generator version.
func CheckRegistry(ctx context.Context, cfg *config.Config) Result {
	const name = "Registry"

	store, err := registry.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()

	count, err := store.Count(ctx)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d records)", store.Path(), count)}
}
