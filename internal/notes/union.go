package notes

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"cohortaudit/internal/logging"
)

//go:embed union.sql
var unionSchemaSQL string

// Lab is the unionized note listing of a batch.
type Lab struct {
	Notes []Note  `json:"notes"`
	Meta  LabMeta `json:"meta"`
}

// LabMeta describes how the listing was assembled.
type LabMeta struct {
	SourceFiles           []string `json:"source_files"`
	TotalNotesBeforeUnion int      `json:"total_notes_before_union"`
	TotalNotesAfterUnion  int      `json:"total_notes_after_union"`
	DuplicatesRemoved     int      `json:"duplicates_removed"`
	SiteOptions           []string `json:"site_options"`
}

// Union keeps one note per (client, note number) across the batch. Files are
// applied in load order so later files replace earlier notes.
func Union(ctx context.Context, batch *Batch, logger *slog.Logger) (*Lab, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	store, err := openUnionStore(ctx)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	before := 0
	for _, rec := range batch.Records {
		for _, note := range subjectNotes(rec) {
			if err := store.upsert(ctx, note); err != nil {
				return nil, err
			}
			before++
		}
	}

	notes, err := store.list(ctx)
	if err != nil {
		return nil, err
	}
	sites, err := store.sites(ctx)
	if err != nil {
		return nil, err
	}
	lab := &Lab{
		Notes: notes,
		Meta: LabMeta{
			SourceFiles:           append([]string{}, batch.Paths...),
			TotalNotesBeforeUnion: before,
			TotalNotesAfterUnion:  len(notes),
			DuplicatesRemoved:     before - len(notes),
			SiteOptions:           sites,
		},
	}
	logger.Debug("notes unionized",
		logging.Int("before", before),
		logging.Int("after", len(notes)),
		logging.Int("files", len(batch.Paths)),
	)
	return lab, nil
}

// unionStore is a private in-memory database living for one Union call.
type unionStore struct {
	db *sql.DB
}

func openUnionStore(ctx context.Context) (*unionStore, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open union db: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, unionSchemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create union schema: %w", err)
	}
	return &unionStore{db: db}, nil
}

func (s *unionStore) Close() error {
	return s.db.Close()
}

func (s *unionStore) upsert(ctx context.Context, note Note) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode note %s: %w", note.NoteID, err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO lab_notes (client_id, note_number, site, source_file, payload)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (client_id, note_number) DO UPDATE SET
    site = excluded.site,
    source_file = excluded.source_file,
    payload = excluded.payload`,
		note.ClientID, note.NoteNumber, note.Site, note.SourceFile, string(payload),
	)
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", note.NoteID, err)
	}
	return nil
}

func (s *unionStore) list(ctx context.Context) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM lab_notes ORDER BY client_id, note_number`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []Note{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		var note Note
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, fmt.Errorf("decode note: %w", err)
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

func (s *unionStore) sites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT site FROM lab_notes WHERE site <> '' ORDER BY site`)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	sites := []string{}
	for rows.Next() {
		var site string
		if err := rows.Scan(&site); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}
