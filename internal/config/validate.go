package config

import (
	"errors"
	"fmt"
	"regexp"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateAnalysis(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if len(c.Paths.NotesDirs) == 0 {
		return errors.New("paths.notes_dirs must list at least one directory (or set MOCK_NOTES_DIR)")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateAnalysis() error {
	a := c.Analysis
	if a.NClusters < 1 {
		return errors.New("analysis.n_clusters must be at least 1")
	}
	if a.Alpha <= 0 || a.Alpha > 1 {
		return errors.New("analysis.alpha must be in (0, 1]")
	}
	switch a.LengthMode {
	case "truncate", "pad", "error":
	default:
		return fmt.Errorf("analysis.length_mode must be one of truncate, pad, error (got %q)", a.LengthMode)
	}
	switch a.BaselineMethod {
	case "round", "ceil", "floor":
	default:
		return fmt.Errorf("analysis.baseline_method must be one of round, ceil, floor (got %q)", a.BaselineMethod)
	}
	if a.MaxIndividualCurves < 0 {
		return errors.New("analysis.max_individual_curves must be >= 0")
	}
	if a.MaxCurvePoints < 0 {
		return errors.New("analysis.max_curve_points must be >= 0")
	}
	if a.MaxIterations < 0 {
		return errors.New("analysis.max_iterations must be >= 0")
	}
	if a.Tolerance < 0 {
		return errors.New("analysis.tolerance must be >= 0")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.RequestTimeoutSeconds < 0 {
		return errors.New("server.request_timeout_seconds must be >= 0")
	}
	if c.Server.CORSOriginRegex != "" {
		if _, err := regexp.Compile(c.Server.CORSOriginRegex); err != nil {
			return fmt.Errorf("server.cors_origin_regex: %w", err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
	return nil
}
