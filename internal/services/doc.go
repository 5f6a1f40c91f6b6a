// Package services defines shared utilities consumed by the analysis pipeline
// and the HTTP boundary.
//
// Key responsibilities:
//   - Context helpers that stamp correlation identifiers and pipeline stage
//     names for logging.
//   - Structured error markers plus the Wrap helper that let the request
//     boundary classify failures (ingestion, length mismatch, insufficient
//     data, invalid parameter) without string matching.
//
// Use these helpers when wiring new pipeline stages so failure reporting and
// log correlation stay uniform across the service.
package services
