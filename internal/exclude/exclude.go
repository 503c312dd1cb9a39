package exclude

import (
	"path"
	"path/filepath"
	"strings"

	ig "github.com/sabhiram/go-gitignore"
)

// defaultExcludes are always excluded from sync regardless of profile
// patterns: the tool's own config and state must never travel.
var defaultExcludes = []string{".revsync", "revsync.yaml"}

// Matcher evaluates a compiled set of glob exclude patterns against paths
// relative to the sync root. Compilation happens once per pattern list;
// Match is safe for concurrent use.
type Matcher struct {
	lines   []string
	matcher *ig.GitIgnore
}

// NewMatcher compiles the given exclude patterns together with the default
// excludes. Bare patterns like "*.log" are expanded to also match in
// subdirectories, so "*.log" excludes logs anywhere under the root.
// Patterns prefixed with "!" re-include previously excluded paths.
func NewMatcher(patterns []string) *Matcher {
	all := make([]string, 0, len(defaultExcludes)+len(patterns))
	all = append(all, defaultExcludes...)
	all = append(all, patterns...)

	lines := make([]string, 0, len(all)*2)
	for _, p := range all {
		l := strings.TrimSpace(p)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		neg := false
		if strings.HasPrefix(l, "!") {
			neg = true
			l = strings.TrimPrefix(l, "!")
		}
		l = filepath.ToSlash(l)
		variants := []string{l}
		// bare name or glob: add **/ form so it matches in any subtree
		if !strings.Contains(l, "/") && !strings.Contains(l, "**") {
			variants = append(variants, "**/"+l)
		}
		for _, v := range variants {
			if neg {
				lines = append(lines, "!"+v)
			} else {
				lines = append(lines, v)
			}
		}
	}

	return &Matcher{lines: lines, matcher: ig.CompileIgnoreLines(lines...)}
}

// Match reports whether relPath (relative to the sync root) is excluded.
// Both slash- and OS-separated inputs are accepted.
func (m *Matcher) Match(relPath string) bool {
	rp := filepath.ToSlash(relPath)
	if m.matcher.MatchesPath(rp) {
		return true
	}
	// fall back to the base name so "foo.log" given as a bare path still
	// matches patterns anchored deeper
	return m.matcher.MatchesPath(path.Base(rp))
}

// Patterns returns the expanded pattern lines the matcher was compiled from.
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.lines))
	copy(out, m.lines)
	return out
}
