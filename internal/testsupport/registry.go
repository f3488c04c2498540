package testsupport

import (
	"testing"

	"github.com/Goosie/nostr-object-identity/internal/config"
	"github.com/Goosie/nostr-object-identity/internal/registry"
)

// MustOpenRegistry opens a registry.Store for tests and registers cleanup.
func MustOpenRegistry(t testing.TB, cfg *config.Config) *registry.Store {
	t.Helper()

	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("registry.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
