// Package logging assembles structured slog loggers for the service and CLI.
//
// It owns the console and JSON handlers, maps configured level and format
// strings onto slog, and exposes context helpers so request handlers and the
// analysis pipeline tag log lines with the stage and correlation ID carried in
// the context. A no-op logger is provided for tests and optional wiring.
package logging
