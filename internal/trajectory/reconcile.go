package trajectory

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"gonum.org/v1/gonum/stat"

	"cohortaudit/internal/services"
)

// LengthMode selects how curves of differing lengths are made comparable.
type LengthMode string

const (
	LengthTruncate LengthMode = "truncate"
	LengthPad      LengthMode = "pad"
	LengthError    LengthMode = "error"
)

// ParseLengthMode validates a user supplied length mode.
func ParseLengthMode(value string) (LengthMode, error) {
	switch mode := LengthMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case LengthTruncate, LengthPad, LengthError:
		return mode, nil
	default:
		return "", services.Wrap(services.ErrInvalidParameter, "reconcile", "length_mode", fmt.Sprintf("unknown length_mode %q", value), nil)
	}
}

// maxReportedLengths caps how many distinct lengths end up in the error text.
const maxReportedLengths = 20

// LengthMismatchError reports the distinct curve lengths seen when the error
// length mode rejects a batch.
type LengthMismatchError struct {
	Lengths []int
}

func (e *LengthMismatchError) Error() string {
	shown := e.Lengths
	if len(shown) > maxReportedLengths {
		shown = shown[:maxReportedLengths]
	}
	return fmt.Sprintf("length mismatch: %v (min=%d, max=%d)", shown, e.Lengths[0], e.Lengths[len(e.Lengths)-1])
}

// Is lets errors.Is match the shared length mismatch marker.
func (e *LengthMismatchError) Is(target error) bool {
	return target == services.ErrLengthMismatch
}

// DistinctLengths returns the sorted set of curve lengths.
func DistinctLengths(curves [][]float64) []int {
	seen := make(map[int]struct{}, 4)
	for _, c := range curves {
		seen[len(c)] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Reconcile returns copies of curves that all share one length according to
// mode. Padded positions hold NaN until ImputeColumnMeans runs.
func Reconcile(curves [][]float64, mode LengthMode) ([][]float64, error) {
	lengths := DistinctLengths(curves)
	if len(lengths) <= 1 {
		return cloneRows(curves, -1), nil
	}
	switch mode {
	case LengthError:
		return nil, &LengthMismatchError{Lengths: lengths}
	case LengthTruncate:
		return cloneRows(curves, lengths[0]), nil
	case LengthPad:
		target := lengths[len(lengths)-1]
		out := make([][]float64, len(curves))
		for i, c := range curves {
			row := make([]float64, target)
			copy(row, c)
			for j := len(c); j < target; j++ {
				row[j] = math.NaN()
			}
			out[i] = row
		}
		return out, nil
	default:
		return nil, services.Wrap(services.ErrInvalidParameter, "reconcile", "length_mode", fmt.Sprintf("unknown length_mode %q", string(mode)), nil)
	}
}

func cloneRows(curves [][]float64, width int) [][]float64 {
	out := make([][]float64, len(curves))
	for i, c := range curves {
		if width >= 0 && len(c) > width {
			c = c[:width]
		}
		out[i] = slices.Clone(c)
	}
	return out
}

// ImputeColumnMeans replaces NaN entries with the mean of the non-NaN values in
// the same column. A column holding only NaN is filled with zero. Rows
// are modified in place; the number of replaced entries is returned.
func ImputeColumnMeans(rows [][]float64) int {
	if len(rows) == 0 {
		return 0
	}
	width := len(rows[0])
	replaced := 0
	column := make([]float64, 0, len(rows))
	for j := range width {
		column = column[:0]
		missing := false
		for _, row := range rows {
			if math.IsNaN(row[j]) {
				missing = true
				continue
			}
			column = append(column, row[j])
		}
		if !missing {
			continue
		}
		fill := 0.0
		if len(column) > 0 {
			fill = stat.Mean(column, nil)
		}
		for _, row := range rows {
			if math.IsNaN(row[j]) {
				row[j] = fill
				replaced++
			}
		}
	}
	return replaced
}
