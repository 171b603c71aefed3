package testsupport

import (
	"path/filepath"
	"testing"

	"songreel/internal/config"
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
	cfgVal.Paths.ClipDir = filepath.Join(base, "clips")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.ScriptGen.APIKey = "test"
	cfgVal.VideoGen.APIKey = "test"
	cfgVal.Upload.Dir = filepath.Join(base, "delivery")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithCharacter overrides the matching character tag on the test config.
func WithCharacter(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Matching.Character = name
	}
}

// WithUploadProvider switches the upload provider on the test config.
func WithUploadProvider(provider string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.Provider = provider
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
