package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"cohortaudit/internal/api"
)

const (
	ansiReset = "\x1b[0m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

var (
	titleCaser = cases.Title(language.Und)
	printer    = message.NewPrinter(language.English)
)

func renderAnalysis(resp *api.AnalyticsResponse, colorize bool) string {
	var b strings.Builder
	cfg := resp.Config
	b.WriteString(sectionHeader("Analysis", colorize))
	fmt.Fprintf(&b, "  Files:        %d\n", len(resp.Inputs.JSONPaths))
	fmt.Fprintf(&b, "  Subjects:     %s\n", printer.Sprintf("%d", resp.Overall.TotalChildren))
	fmt.Fprintf(&b, "  Cohorts:      %d (seed %d, %s lengths)\n", cfg.NClusters, cfg.Seed, cfg.LengthMode)
	fmt.Fprintf(&b, "  Schedule:     %d sessions (%d deltas)\n\n", cfg.TMaxSessions, cfg.MDeltas)

	labels := slices.Sorted(maps.Keys(resp.Clusters.Counts))
	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		c := resp.Clusters
		rows = append(rows, []string{
			strconv.Itoa(label),
			strconv.Itoa(c.Counts[label]),
			optionalInt(c.QStar, label),
			optionalFloat(c.EDelivered, label, 2),
			optionalFloat(c.ESaved, label, 2),
			optionalPercent(c.PPassOpt, label),
			optionalInt(c.QMean, label),
			optionalFloat(c.ESavedMean, label, 2),
			topArchetype(c.ArchetypesByCluster[label]),
		})
	}
	b.WriteString(renderTable("Cohorts",
		[]string{"Cohort", "Size", "Q*", "E[delivered]", "E[saved]", "Pass", "Q mean", "Saved (mean)", "Top archetype"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	b.WriteString("\n\n")

	o := resp.Overall
	b.WriteString(sectionHeader("Overall", colorize))
	fmt.Fprintf(&b, "  Original sessions:  %s\n", printer.Sprintf("%d", o.TotalOriginalSessions))
	fmt.Fprintf(&b, "  Optimal policy:     %s delivered, %s saved (%.1f%%)\n",
		printer.Sprintf("%.1f", o.ExpectedTotalDelivered), printer.Sprintf("%.1f", o.ExpectedTotalSaved), o.ExpectedPercentSaved)
	fmt.Fprintf(&b, "  Mean baseline:      %s delivered, %s saved (%.1f%%)\n",
		printer.Sprintf("%.1f", o.ExpectedTotalDeliveredBaseline), printer.Sprintf("%.1f", o.ExpectedTotalSavedBaseline), o.ExpectedPercentSavedBaseline)
	improvement := fmt.Sprintf("  Improvement:        %+.1f sessions (%+.1f points)", o.DeltaSavedVsBaseline, o.SavingsImprovementVsBaseline)
	if colorize && o.DeltaSavedVsBaseline > 0 {
		improvement = ansiGreen + improvement + ansiReset
	}
	b.WriteString(improvement)
	b.WriteString("\n")
	return b.String()
}

func sectionHeader(title string, colorize bool) string {
	line := fmt.Sprintf("== %s ==", title)
	if colorize {
		line = ansiBlue + line + ansiReset
	}
	return line + "\n"
}

// archetypeLabel renders a snake_case archetype for display.
func archetypeLabel(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return "-"
	}
	return titleCaser.String(name)
}

// topArchetype picks the most frequent archetype, breaking ties by name.
func topArchetype(counts map[string]int) string {
	best, bestCount := "", 0
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		if counts[name] > bestCount {
			best, bestCount = name, counts[name]
		}
	}
	if bestCount == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%d)", archetypeLabel(best), bestCount)
}

func optionalInt(values map[int]int, label int) string {
	if v, ok := values[label]; ok {
		return strconv.Itoa(v)
	}
	return "-"
}

func optionalFloat(values map[int]float64, label, digits int) string {
	if v, ok := values[label]; ok {
		return strconv.FormatFloat(v, 'f', digits, 64)
	}
	return "-"
}

func optionalPercent(values map[int]float64, label int) string {
	if v, ok := values[label]; ok {
		return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
	}
	return "-"
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
