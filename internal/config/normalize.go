package config

import (
	"fmt"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnalysis()
	c.normalizeServer()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	dirs := make([]string, 0, len(c.Paths.NotesDirs))
	seen := make(map[string]struct{}, len(c.Paths.NotesDirs))
	for i, dir := range c.Paths.NotesDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("paths.notes_dirs[%d]: %w", i, err)
		}
		if _, dup := seen[expanded]; dup {
			continue
		}
		seen[expanded] = struct{}{}
		dirs = append(dirs, expanded)
	}
	c.Paths.NotesDirs = dirs

	c.Paths.NotesGlob = strings.TrimSpace(c.Paths.NotesGlob)
	if c.Paths.NotesGlob == "" {
		c.Paths.NotesGlob = defaultNotesGlob
	}
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeAnalysis() {
	c.Analysis.LengthMode = strings.ToLower(strings.TrimSpace(c.Analysis.LengthMode))
	if c.Analysis.LengthMode == "" {
		c.Analysis.LengthMode = defaultLengthMode
	}
	c.Analysis.BaselineMethod = strings.ToLower(strings.TrimSpace(c.Analysis.BaselineMethod))
	if c.Analysis.BaselineMethod == "" {
		c.Analysis.BaselineMethod = defaultBaselineMethod
	}
}

func (c *Config) normalizeServer() {
	if c.Server.Workers <= 0 {
		c.Server.Workers = runtime.NumCPU()
	}
	c.Server.CORSOrigins = trimCSV(c.Server.CORSOrigins)
	c.Server.CORSOriginRegex = strings.TrimSpace(c.Server.CORSOriginRegex)
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	}
	c.Logging.Level = level
}
