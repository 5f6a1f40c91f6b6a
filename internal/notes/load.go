package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cohortaudit/internal/analytics"
	"cohortaudit/internal/services"
)

// Batch is the parsed content of every discovered file.
type Batch struct {
	Paths   []string
	Files   []FileStats
	Records []Record
}

// FileStats summarises one batch file.
type FileStats struct {
	File          string `json:"file"`
	Path          string `json:"path"`
	Total         int    `json:"total"`
	WithDeltas    int    `json:"with_gpt_deltas"`
	MissingDeltas int    `json:"missing_or_empty_gpt_deltas"`
	MinLen        *int   `json:"min_len"`
	MaxLen        *int   `json:"max_len"`
}

// Record is one JSON object from a batch file.
type Record struct {
	ChildIndex *int
	Archetype  *string
	// Deltas is nil unless gpt_deltas was a non-empty list. Null entries
	// become NaN.
	Deltas     []float64
	Generator  map[string]any
	SourceFile string
}

type rawRecord struct {
	ChildIndex      any             `json:"child_index"`
	Archetype       any             `json:"archetype"`
	GPTDeltas       json.RawMessage `json:"gpt_deltas"`
	GeneratorResult any             `json:"generator_result"`
}

// Load reads every path in order. Any unreadable or non-array file fails the
// whole load.
func Load(ctx context.Context, paths []string) (*Batch, error) {
	batch := &Batch{Paths: append([]string(nil), paths...)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, stats, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		batch.Records = append(batch.Records, records...)
		batch.Files = append(batch.Files, stats)
	}
	return batch, nil
}

func loadFile(path string) ([]Record, FileStats, error) {
	name := filepath.Base(path)
	stats := FileStats{File: name, Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, stats, services.Wrap(services.ErrIngestion, "load", name, fmt.Sprintf("missing file: %s", path), nil)
		}
		return nil, stats, services.Wrap(services.ErrIngestion, "load", name, "read file", err)
	}
	if kind := jsonKind(data); kind != "array" {
		return nil, stats, services.Wrap(services.ErrIngestion, "load", name, fmt.Sprintf("%s did not load to a list (got %s)", path, kind), nil)
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, stats, services.Wrap(services.ErrIngestion, "load", name, "decode json", err)
	}
	stats.Total = len(elements)

	records := make([]Record, 0, len(elements))
	for _, element := range elements {
		if jsonKind(element) != "object" {
			continue
		}
		var raw rawRecord
		if err := json.Unmarshal(element, &raw); err != nil {
			return nil, stats, services.Wrap(services.ErrIngestion, "load", name, "decode record", err)
		}
		rec := Record{
			ChildIndex: intValue(raw.ChildIndex),
			Archetype:  stringValue(raw.Archetype),
			Deltas:     parseDeltas(raw.GPTDeltas),
			SourceFile: name,
		}
		if gen, ok := raw.GeneratorResult.(map[string]any); ok {
			rec.Generator = gen
		}
		if len(rec.Deltas) > 0 {
			stats.WithDeltas++
			n := len(rec.Deltas)
			if stats.MinLen == nil || n < *stats.MinLen {
				stats.MinLen = &n
			}
			if stats.MaxLen == nil || n > *stats.MaxLen {
				stats.MaxLen = &n
			}
		} else {
			stats.MissingDeltas++
		}
		records = append(records, rec)
	}
	return records, stats, nil
}

// Subjects converts records into analysis input.
func (b *Batch) Subjects() []analytics.Subject {
	subjects := make([]analytics.Subject, 0, len(b.Records))
	for _, rec := range b.Records {
		subjects = append(subjects, analytics.Subject{
			ChildIndex: rec.ChildIndex,
			Archetype:  rec.Archetype,
			SourceFile: rec.SourceFile,
			Deltas:     rec.Deltas,
		})
	}
	return subjects
}

func parseDeltas(raw json.RawMessage) []float64 {
	if jsonKind(raw) != "array" {
		return nil
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil || len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = floatValue(v)
	}
	return out
}

func floatValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case bool:
		if x {
			return 1
		}
		return 0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func intValue(v any) *int {
	var n int
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n = int(x)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		n = parsed
	default:
		return nil
	}
	return &n
}

func stringValue(v any) *string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return &x
	default:
		s := fmt.Sprint(x)
		return &s
	}
}

func jsonKind(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "empty"
	}
	switch trimmed[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "bool"
	default:
		return "number"
	}
}
