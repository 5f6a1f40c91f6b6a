package testsupport

import (
	"path/filepath"
	"testing"

	"cohortaudit/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Notes are read from <base>/notes and logs go to <base>/logs.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.NotesDirs = []string{filepath.Join(base, "notes")}
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Server.Workers = 2

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

// WithBatch writes a batch file holding records into the first notes directory.
func WithBatch(name string, records ...map[string]any) ConfigOption {
	return func(b *configBuilder) {
		b.t.Helper()
		WriteBatch(b.t, b.cfg.Paths.NotesDirs[0], name, records...)
	}
}

// WithAPIToken enables bearer authentication on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithSandboxDisabled turns off the Lua sandbox endpoint.
func WithSandboxDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sandbox.Enabled = false
	}
}

// WithClusters overrides the default cohort count.
func WithClusters(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Analysis.NClusters = n
	}
}

// NotesDir returns the directory the generated config reads batches from.
func NotesDir(cfg *config.Config) string {
	return cfg.Paths.NotesDirs[0]
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
