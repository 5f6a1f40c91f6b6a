package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// WriteJSON encodes value into path, creating parent directories.
func WriteJSON(t testing.TB, path string, value any) {
	t.Helper()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	WriteFile(t, path, data)
}

// WriteFile writes raw bytes to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteBatch writes records as a batch-note array named name inside dir and
// returns the file path.
func WriteBatch(t testing.TB, dir, name string, records ...map[string]any) string {
	t.Helper()

	if records == nil {
		records = []map[string]any{}
	}
	path := filepath.Join(dir, name)
	WriteJSON(t, path, records)
	return path
}

// Record builds one evaluated subject record. Passing no deltas leaves
// gpt_deltas empty.
func Record(childIndex int, archetype string, deltas ...float64) map[string]any {
	rec := map[string]any{
		"child_index": childIndex,
		"gpt_deltas":  append([]float64{}, deltas...),
	}
	if archetype != "" {
		rec["archetype"] = archetype
	}
	return rec
}

// WithNotes attaches a generator payload holding the given note texts,
// numbered from 1.
func WithNotes(rec map[string]any, generatorJSON, trajectoryType string, texts ...string) map[string]any {
	notes := make([]map[string]any, 0, len(texts))
	for i, text := range texts {
		notes = append(notes, map[string]any{
			"note_number": i + 1,
			"note_text":   text,
		})
	}
	rec["generator_result"] = map[string]any{
		"json": generatorJSON,
		"data": map[string]any{
			"trajectory_type": trajectoryType,
			"notes":           notes,
		},
	}
	return rec
}

// EarlyDeltas and LateDeltas are two clearly separated response shapes.
var (
	EarlyDeltas = []float64{6, 3, 1, 0, 0, 0, 0, 0}
	LateDeltas  = []float64{0, 0, 0, 0, 1, 3, 5, 6}
)

// TwoCohortBatch returns four early and four late responders.
func TwoCohortBatch() []map[string]any {
	records := make([]map[string]any, 0, 8)
	for i := range 4 {
		records = append(records, Record(i, "fast_responder", EarlyDeltas...))
	}
	for i := range 4 {
		records = append(records, Record(4+i, "plateau", LateDeltas...))
	}
	return records
}
