package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables honoured on top of the file.
type envOverrides struct {
	NotesDir        string   `env:"MOCK_NOTES_DIR"`
	NotesGlob       string   `env:"MOCK_NOTES_GLOB"`
	CORSOrigins     []string `env:"CORS_ORIGINS" envSeparator:","`
	CORSOriginRegex string   `env:"CORS_ORIGIN_REGEX"`
	APIBind         string   `env:"COHORTAUDIT_API_BIND"`
	APIToken        string   `env:"COHORTAUDIT_API_TOKEN"`
}

// applyEnv overlays non-empty environment values. MOCK_NOTES_DIR is searched
// before the configured directories; duplicates are removed by normalize.
func (c *Config) applyEnv() error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if dir := strings.TrimSpace(raw.NotesDir); dir != "" {
		c.Paths.NotesDirs = append([]string{dir}, c.Paths.NotesDirs...)
	}
	if glob := strings.TrimSpace(raw.NotesGlob); glob != "" {
		c.Paths.NotesGlob = glob
	}
	if origins := trimCSV(raw.CORSOrigins); len(origins) > 0 {
		c.Server.CORSOrigins = origins
	}
	if regex := strings.TrimSpace(raw.CORSOriginRegex); regex != "" {
		c.Server.CORSOriginRegex = regex
	}
	if bind := strings.TrimSpace(raw.APIBind); bind != "" {
		c.Paths.APIBind = bind
	}
	if token := strings.TrimSpace(raw.APIToken); token != "" {
		c.Paths.APIToken = token
	}
	return nil
}

func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
