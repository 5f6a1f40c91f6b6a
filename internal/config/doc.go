// Package config loads, normalizes, and validates cohortaudit configuration.
//
// It supplies repository defaults, reads an optional TOML file, overlays the
// environment variables the notes service has always honoured (MOCK_NOTES_DIR,
// MOCK_NOTES_GLOB, CORS_ORIGINS, CORS_ORIGIN_REGEX) plus the COHORTAUDIT_*
// bind and token overrides, and expands user paths including tilde shortcuts.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum spellings, and clear validation errors.
package config
