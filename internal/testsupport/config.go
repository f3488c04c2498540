package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/Goosie/nostr-object-identity/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Matching.Workers = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithStrictThreshold overrides the registration duplicate threshold.
func WithStrictThreshold(threshold int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Matching.StrictThreshold = threshold
	}
}

// WithoutAuxiliarySignatures disables color and edge signature computation.
func WithoutAuxiliarySignatures() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Matching.AuxiliarySignatures = false
	}
}

// WithDataDir points the registry at an explicit directory.
func WithDataDir(dir string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.DataDir = dir
	}
}
