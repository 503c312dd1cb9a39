package exclude

import "testing"

func TestMatcherPatterns(t *testing.T) {
	m := NewMatcher([]string{"*.log", "node_modules", "build/output", ".env"})

	cases := []struct {
		rel      string
		excluded bool
		desc     string
	}{
		{"a.txt", false, "plain file included"},
		{"b.log", true, "bare glob at root"},
		{"sub/dir/c.log", true, "bare glob in subdirectory"},
		{"node_modules", true, "bare directory name"},
		{"pkg/node_modules", true, "directory name in subtree"},
		{"pkg/node_modules/lib.js", true, "file under excluded directory"},
		{"build/output", true, "slash pattern exact"},
		{"build/output/app.bin", true, "file under slash pattern"},
		{"build/other.txt", false, "sibling of slash pattern"},
		{".env", true, "dotfile pattern"},
		{"config/.env", true, "dotfile pattern in subtree"},
		{".hidden.log", true, "glob matches dotfile"},
	}
	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := m.Match(tc.rel); got != tc.excluded {
				t.Errorf("Match(%q) = %v, expected %v", tc.rel, got, tc.excluded)
			}
		})
	}
}

func TestMatcherDefaults(t *testing.T) {
	m := NewMatcher(nil)

	if !m.Match(".revsync") {
		t.Fatalf("expected .revsync to always be excluded")
	}
	if !m.Match(".revsync/history/index.json") {
		t.Fatalf("expected state dir contents to be excluded")
	}
	if !m.Match("revsync.yaml") {
		t.Fatalf("expected config file to always be excluded")
	}
	if m.Match("main.go") {
		t.Fatalf("expected main.go to be included with no patterns")
	}
}

func TestMatcherNegation(t *testing.T) {
	m := NewMatcher([]string{"*.log", "!keep.log"})

	if !m.Match("debug.log") {
		t.Fatalf("expected debug.log excluded")
	}
	if m.Match("keep.log") {
		t.Fatalf("expected keep.log re-included by negation")
	}
	if m.Match("sub/keep.log") {
		t.Fatalf("expected sub/keep.log re-included by negation")
	}
}

func TestMatcherBlankAndComments(t *testing.T) {
	m := NewMatcher([]string{"", "  ", "# comment", "*.tmp"})

	if !m.Match("x.tmp") {
		t.Fatalf("expected *.tmp pattern to survive blank lines")
	}
	for _, p := range m.Patterns() {
		if p == "# comment" || p == "" {
			t.Fatalf("comment/blank lines must not become patterns, got %q", p)
		}
	}
}
