package fs

import (
	"os"
	"path/filepath"
	"strings"

	"findup/internal/findup"
)

// ignorePattern is a parsed ignore pattern with its matching strategy.
type ignorePattern struct {
	pattern   string
	matchPath bool // true = match against relative path; false = basename only
}

// IgnoreMatcher checks scan-relative paths against a set of ignore
// patterns. Patterns without '/' match against the file's basename
// only; patterns with '/' match against the full relative path. It is
// the default implementation of findup.IgnoreMatcher; callers may
// substitute richer dialects.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher creates an IgnoreMatcher from raw pattern strings.
// Blank lines and lines starting with '#' are skipped.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	var patterns []ignorePattern
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		patterns = append(patterns, ignorePattern{
			pattern:   raw,
			matchPath: strings.Contains(raw, "/"),
		})
	}
	return &IgnoreMatcher{patterns: patterns}
}

// Match reports whether the given relative path should be skipped.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if len(m.patterns) == 0 {
		return false
	}

	normalized := filepath.ToSlash(relativePath)
	basename := filepath.Base(relativePath)

	for _, p := range m.patterns {
		var matched bool
		var err error
		if p.matchPath {
			matched, err = filepath.Match(p.pattern, normalized)
		} else {
			matched, err = filepath.Match(p.pattern, basename)
		}
		if err != nil {
			// malformed pattern, skip
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// ParseIgnoreFile reads raw ignore lines from path. A missing file is
// not an error and yields nil. Filtering of blanks and comments is
// left to NewIgnoreMatcher.
func ParseIgnoreFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n"), nil
}

// Compile-time check that IgnoreMatcher satisfies the engine interface.
var _ findup.IgnoreMatcher = (*IgnoreMatcher)(nil)
