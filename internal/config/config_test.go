package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cohortaudit/internal/config"
)

// clearEnv blanks the overrides so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"MOCK_NOTES_DIR", "MOCK_NOTES_GLOB", "CORS_ORIGINS", "CORS_ORIGIN_REGEX", "COHORTAUDIT_API_BIND", "COHORTAUDIT_API_TOKEN"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "cohortaudit", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.LockPath() != filepath.Join(wantLogDir, "cohortaudit.lock") {
		t.Fatalf("unexpected lock path: %q", cfg.LockPath())
	}
	if len(cfg.Paths.NotesDirs) != 3 || !filepath.IsAbs(cfg.Paths.NotesDirs[0]) {
		t.Fatalf("unexpected notes dirs: %v", cfg.Paths.NotesDirs)
	}
	if cfg.Paths.NotesGlob != "batch_notes_eval_*.json" {
		t.Fatalf("unexpected glob: %q", cfg.Paths.NotesGlob)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Analysis.NClusters != 4 || cfg.Analysis.Alpha != 0.90 || cfg.Analysis.LengthMode != "truncate" {
		t.Fatalf("unexpected analysis defaults: %+v", cfg.Analysis)
	}
	if cfg.Server.Workers != runtime.NumCPU() {
		t.Fatalf("expected workers to default to NumCPU, got %d", cfg.Server.Workers)
	}
	if !cfg.Sandbox.Enabled {
		t.Fatal("expected sandbox enabled by default")
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
notes_dirs = ["~/notes", "~/notes", " "]
notes_glob = "run_*.json"
log_dir = "~/state"

[analysis]
n_clusters = 3
length_mode = " PAD "
baseline_method = "Ceil"

[server]
workers = 2
cors_origins = ["https://example.test", " "]

[logging]
format = "JSON"
level = "warning"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to resolve, got %q exists=%v", resolved, exists)
	}
	if len(cfg.Paths.NotesDirs) != 1 || cfg.Paths.NotesDirs[0] != filepath.Join(tempHome, "notes") {
		t.Fatalf("unexpected notes dirs: %v", cfg.Paths.NotesDirs)
	}
	if cfg.Paths.NotesGlob != "run_*.json" {
		t.Fatalf("unexpected glob: %q", cfg.Paths.NotesGlob)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "state") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Analysis.NClusters != 3 || cfg.Analysis.LengthMode != "pad" || cfg.Analysis.BaselineMethod != "ceil" {
		t.Fatalf("unexpected analysis: %+v", cfg.Analysis)
	}
	if cfg.Analysis.Alpha != 0.90 {
		t.Fatalf("unset alpha should keep default, got %v", cfg.Analysis.Alpha)
	}
	if cfg.Server.Workers != 2 || len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("unexpected server: %+v", cfg.Server)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "warn" {
		t.Fatalf("unexpected logging: %+v", cfg.Logging)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	envNotes := filepath.Join(tempHome, "env-notes")
	t.Setenv("MOCK_NOTES_DIR", envNotes)
	t.Setenv("MOCK_NOTES_GLOB", "custom_*.json")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("CORS_ORIGIN_REGEX", `https://.*\.test$`)
	t.Setenv("COHORTAUDIT_API_BIND", "0.0.0.0:9000")
	t.Setenv("COHORTAUDIT_API_TOKEN", "secret")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
notes_dirs = ["~/file-notes"]
notes_glob = "file_*.json"
api_bind = "127.0.0.1:1"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := []string{envNotes, filepath.Join(tempHome, "file-notes")}
	if strings.Join(cfg.Paths.NotesDirs, "|") != strings.Join(want, "|") {
		t.Fatalf("notes dirs = %v, want %v", cfg.Paths.NotesDirs, want)
	}
	if cfg.Paths.NotesGlob != "custom_*.json" {
		t.Fatalf("unexpected glob %q", cfg.Paths.NotesGlob)
	}
	if strings.Join(cfg.Server.CORSOrigins, ",") != "https://a.test,https://b.test" {
		t.Fatalf("unexpected origins %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.CORSOriginRegex != `https://.*\.test$` {
		t.Fatalf("unexpected regex %q", cfg.Server.CORSOriginRegex)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" || cfg.Paths.APIToken != "secret" {
		t.Fatalf("unexpected bind/token: %+v", cfg.Paths)
	}
}

func TestCreateSample(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed config.Config
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config should parse: %v", err)
	}
	defaults := config.Default()
	if parsed.Analysis.NClusters != defaults.Analysis.NClusters || parsed.Analysis.Alpha != defaults.Analysis.Alpha {
		t.Fatalf("sample analysis section drifted from defaults: %+v", parsed.Analysis)
	}
	if parsed.Server.CORSOriginRegex != defaults.Server.CORSOriginRegex {
		t.Fatalf("sample regex %q != default %q", parsed.Server.CORSOriginRegex, defaults.Server.CORSOriginRegex)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"no notes dirs", func(c *config.Config) { c.Paths.NotesDirs = nil }, "paths.notes_dirs"},
		{"zero clusters", func(c *config.Config) { c.Analysis.NClusters = 0 }, "analysis.n_clusters"},
		{"alpha", func(c *config.Config) { c.Analysis.Alpha = 1.2 }, "analysis.alpha"},
		{"length mode", func(c *config.Config) { c.Analysis.LengthMode = "stretch" }, "analysis.length_mode"},
		{"baseline", func(c *config.Config) { c.Analysis.BaselineMethod = "median" }, "analysis.baseline_method"},
		{"tolerance", func(c *config.Config) { c.Analysis.Tolerance = -1 }, "analysis.tolerance"},
		{"timeout", func(c *config.Config) { c.Server.RequestTimeoutSeconds = -1 }, "server.request_timeout_seconds"},
		{"regex", func(c *config.Config) { c.Server.CORSOriginRegex = "(" }, "server.cors_origin_regex"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
