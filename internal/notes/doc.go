// Package notes discovers and loads batch-note JSON files.
//
// A batch file is a JSON array of subject records produced by the note
// generator and evaluator. Discover finds the files, Load parses them into a
// Batch with per-file ingestion statistics, and Union flattens the generator
// notes of a batch into display rows keyed by client and note number, with
// later files replacing earlier ones.
package notes
