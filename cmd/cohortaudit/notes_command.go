package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cohortaudit/internal/api"
	"cohortaudit/internal/notes"
)

func newNotesCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		client     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "notes",
		Short: "List the unionized session notes of the batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			resp, err := api.NewService(cfg, logger).Lab(cmd.Context())
			if err != nil {
				return fmt.Errorf("list notes: %w", err)
			}
			if client = strings.TrimSpace(client); client != "" {
				resp.Notes = filterClient(resp.Notes, client)
			}
			if limit > 0 && len(resp.Notes) > limit {
				resp.Notes = resp.Notes[:limit]
			}
			if jsonOutput {
				return writeJSON(cmd, resp)
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(resp.Notes))
			for _, note := range resp.Notes {
				tags := make([]string, 0, len(note.Tags))
				for _, tag := range note.Tags {
					tags = append(tags, archetypeLabel(tag))
				}
				rows = append(rows, []string{
					note.NoteID,
					note.CreatedAt,
					note.Clinician,
					note.Status,
					strings.Join(tags, ", "),
					notes.Snippet(note.Snippet, 60),
				})
			}
			fmt.Fprintln(out, renderTable("Notes",
				[]string{"Note", "Date", "Clinician", "Status", "Tags", "Snippet"},
				rows,
				nil,
			))
			meta := resp.Meta
			fmt.Fprintf(out, "%d notes from %d files (%d before union, %d duplicates removed)\n",
				meta.TotalNotesAfterUnion, len(meta.SourceFiles), meta.TotalNotesBeforeUnion, meta.DuplicatesRemoved)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the listing as JSON")
	cmd.Flags().StringVar(&client, "client", "", "Only show notes for this client id (e.g. C-0001)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum notes to show")
	return cmd
}

func filterClient(list []notes.Note, client string) []notes.Note {
	out := make([]notes.Note, 0, len(list))
	for _, note := range list {
		if strings.EqualFold(note.ClientID, client) {
			out = append(out, note)
		}
	}
	return out
}
