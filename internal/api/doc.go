// Package api defines the wire-format types and the shared service used by the
// HTTP server and the CLI.
//
// # Key Types
//
// AnalyticsResponse: the analysis result plus the input paths and per-file
// loader statistics.
//
// LabResponse: the unionized note listing.
//
// ErrorResponse: the structured {ok:false, error, kind} failure object.
//
// # Service
//
// Service discovers batch files under the configured directories, loads them
// and runs either the analysis or the notes union. Request parameters start
// from the [analysis] config section and are overridden by query values.
//
// # Design Notes
//
// JSON keys are snake_case to match the batch files the payloads describe.
// Errors are classified once, here, through services.Kind; StatusFor maps a
// kind to its HTTP status.
package api
