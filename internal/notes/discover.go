package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cohortaudit/internal/services"
)

// DefaultPattern matches evaluated batch files.
const DefaultPattern = "batch_notes_eval_*.json"

// Discover returns the sorted absolute paths matching pattern in the first
// directory of dirs that has any match.
func Discover(dirs []string, pattern string) ([]string, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultPattern
	}
	searched := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			abs = dir
		}
		searched = append(searched, abs)
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(abs, pattern))
		if err != nil {
			return nil, services.Wrap(services.ErrIngestion, "discover", "glob", fmt.Sprintf("invalid pattern %q", pattern), err)
		}
		if len(matches) == 0 {
			continue
		}
		slices.Sort(matches)
		return matches, nil
	}
	return nil, services.Wrap(
		services.ErrIngestion,
		"discover",
		"",
		fmt.Sprintf("no JSON files found with pattern %q; searched directories: %s; set MOCK_NOTES_DIR to override", pattern, strings.Join(searched, ", ")),
		nil,
	)
}
