// Package main hosts the cohortaudit CLI entrypoint and command graph.
//
// The Cobra command tree serves the HTTP API, runs offline analyses and note
// listings against the configured batch directories, evaluates sandbox
// scripts, and scaffolds configuration. Configuration resolution and logger
// setup live here so subcommands only parse flags and render output; the
// analysis itself stays in the internal packages.
package main
