package pathmap

import (
	"path/filepath"
	"testing"
)

func TestResolverRoundTrip(t *testing.T) {
	r := NewResolver(filepath.FromSlash("/home/dev/project"), "/var/www/app")

	local := filepath.FromSlash("/home/dev/project/src/main.go")
	remote, err := r.ToRemote(local)
	if err != nil {
		t.Fatalf("ToRemote failed: %v", err)
	}
	if remote != "/var/www/app/src/main.go" {
		t.Fatalf("ToRemote = %q, expected /var/www/app/src/main.go", remote)
	}

	back, err := r.ToLocal(remote)
	if err != nil {
		t.Fatalf("ToLocal failed: %v", err)
	}
	if back != local {
		t.Fatalf("round trip = %q, expected %q", back, local)
	}
}

func TestResolverRoots(t *testing.T) {
	r := NewResolver(filepath.FromSlash("/home/dev/project"), "/srv/data/")

	remote, err := r.ToRemote(filepath.FromSlash("/home/dev/project"))
	if err != nil {
		t.Fatalf("ToRemote on root failed: %v", err)
	}
	if remote != "/srv/data" {
		t.Fatalf("ToRemote root = %q, expected /srv/data", remote)
	}

	rel, err := r.RelRemote("/srv/data")
	if err != nil || rel != "." {
		t.Fatalf("RelRemote root = %q, %v; expected \".\"", rel, err)
	}
}

func TestResolverOutsideRoot(t *testing.T) {
	r := NewResolver(filepath.FromSlash("/home/dev/project"), "/srv/data")

	cases := []struct {
		local string
		in    bool
	}{
		{"/home/dev/project/a.txt", true},
		{"/home/dev/project/sub/b.txt", true},
		{"/home/dev/other/c.txt", false},
		{"/home/dev", false},
		{"/home/dev/project", true},
	}
	for _, tc := range cases {
		if got := r.Contains(filepath.FromSlash(tc.local)); got != tc.in {
			t.Errorf("Contains(%q) = %v, expected %v", tc.local, got, tc.in)
		}
	}

	if _, err := r.ToRemote(filepath.FromSlash("/home/dev/other/c.txt")); err == nil {
		t.Fatalf("expected error for path outside root")
	}
	if _, err := r.RelRemote("/srv/other/x"); err == nil {
		t.Fatalf("expected error for remote path outside root")
	}
}
