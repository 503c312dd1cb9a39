package pathmap

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Resolver maps file paths between a local sync root and a remote root.
// Local paths use the OS separator, remote paths are always POSIX style.
// A Resolver is pure and carries no state beyond the two roots.
type Resolver struct {
	LocalRoot  string
	RemoteRoot string
}

// NewResolver builds a Resolver. localRoot should be absolute; remoteRoot is
// normalized to a slash-separated path without a trailing slash.
func NewResolver(localRoot, remoteRoot string) Resolver {
	return Resolver{
		LocalRoot:  filepath.Clean(localRoot),
		RemoteRoot: path.Clean(filepath.ToSlash(remoteRoot)),
	}
}

// Rel returns the slash-separated path of localPath relative to the local
// root. Fails when localPath lies outside the root.
func (r Resolver) Rel(localPath string) (string, error) {
	rel, err := filepath.Rel(r.LocalRoot, filepath.Clean(localPath))
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("path %s is outside sync root %s", localPath, r.LocalRoot)
	}
	return rel, nil
}

// Contains reports whether localPath lies under the local root.
func (r Resolver) Contains(localPath string) bool {
	_, err := r.Rel(localPath)
	return err == nil
}

// ToRemote maps an absolute local path to its remote counterpart.
func (r Resolver) ToRemote(localPath string) (string, error) {
	rel, err := r.Rel(localPath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return r.RemoteRoot, nil
	}
	return path.Join(r.RemoteRoot, rel), nil
}

// ToLocal maps a remote path under the remote root back to a local path.
func (r Resolver) ToLocal(remotePath string) (string, error) {
	rel, err := r.RelRemote(remotePath)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return r.LocalRoot, nil
	}
	return filepath.Join(r.LocalRoot, filepath.FromSlash(rel)), nil
}

// RelRemote returns the slash-separated path of remotePath relative to the
// remote root. Fails when remotePath lies outside the root.
func (r Resolver) RelRemote(remotePath string) (string, error) {
	rp := path.Clean(filepath.ToSlash(remotePath))
	if rp == r.RemoteRoot {
		return ".", nil
	}
	prefix := r.RemoteRoot
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if !strings.HasPrefix(rp, prefix) {
		return "", fmt.Errorf("path %s is outside remote root %s", remotePath, r.RemoteRoot)
	}
	return strings.TrimPrefix(rp, prefix), nil
}
