package notes

import (
	"fmt"
	"path"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultSite     = "Cambridge"
	clinicianPool   = 12
	snippetMaxRunes = 150
	unknownDate     = "unknown"
)

// Note is one flattened generator note prepared for display.
type Note struct {
	NoteID         string   `json:"note_id"`
	ClientID       string   `json:"client_id"`
	CreatedAt      string   `json:"created_at"`
	Clinician      string   `json:"clinician"`
	Site           string   `json:"site"`
	Status         string   `json:"status"`
	Tags           []string `json:"tags"`
	Snippet        string   `json:"snippet"`
	Note           string   `json:"note"`
	ChildIndex     int      `json:"child_index"`
	NoteNumber     int      `json:"note_number"`
	Archetype      *string  `json:"archetype"`
	TrajectoryType *string  `json:"trajectory_type"`
	SourceFile     string   `json:"source_file"`
}

// subjectNotes expands the generator notes of one record. Records without a
// generator payload or note list yield nothing.
func subjectNotes(rec Record) []Note {
	data, ok := rec.Generator["data"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := data["notes"].([]any)
	if !ok {
		return nil
	}
	childIndex := 0
	if rec.ChildIndex != nil {
		childIndex = *rec.ChildIndex
	}
	clientNum := childIndex + 1
	clientID := fmt.Sprintf("C-%04d", clientNum)
	trajectoryType := stringValue(data["trajectory_type"])
	createdAt := parseCreatedAt(rec.Generator["json"])
	status := "extracted"
	if len(rec.Deltas) > 0 {
		status = "evaluated"
	}
	tags := make([]string, 0, 2)
	for _, tag := range []*string{rec.Archetype, trajectoryType} {
		if tag != nil && *tag != "" {
			tags = append(tags, *tag)
		}
	}

	out := make([]Note, 0, len(items))
	for idx, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text := ""
		if v := obj["note_text"]; v != nil {
			text = strings.TrimSpace(*stringValue(v))
		}
		if text == "" {
			continue
		}
		number := idx + 1
		if n := intValue(obj["note_number"]); n != nil {
			number = *n
		}
		out = append(out, Note{
			NoteID:         fmt.Sprintf("%s-N%02d", clientID, number),
			ClientID:       clientID,
			CreatedAt:      createdAt,
			Clinician:      fmt.Sprintf("SLP-%02d", (clientNum%clinicianPool)+1),
			Site:           defaultSite,
			Status:         status,
			Tags:           tags,
			Snippet:        Snippet(text, snippetMaxRunes),
			Note:           text,
			ChildIndex:     childIndex,
			NoteNumber:     number,
			Archetype:      rec.Archetype,
			TrajectoryType: trajectoryType,
			SourceFile:     rec.SourceFile,
		})
	}
	return out
}

// parseCreatedAt reads the date out of a generator output name such as
// notes_20250114_093000.json.
func parseCreatedAt(value any) string {
	raw, ok := value.(string)
	if !ok {
		return unknownDate
	}
	name := path.Base(strings.ReplaceAll(raw, "\\", "/"))
	if !strings.HasPrefix(name, "notes_") {
		return unknownDate
	}
	stem := strings.TrimSuffix(name, path.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return unknownDate
	}
	date, err := time.Parse("20060102", parts[1])
	if err != nil {
		return unknownDate
	}
	return date.Format(time.DateOnly)
}

// Snippet collapses whitespace and caps text at maxRunes, marking the cut
// with an ellipsis.
func Snippet(text string, maxRunes int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(flat) <= maxRunes {
		return flat
	}
	runes := []rune(flat)
	return string(runes[:maxRunes-1]) + "…"
}
