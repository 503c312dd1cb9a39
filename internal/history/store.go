package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"revsync/internal/config"
	"revsync/internal/util"
)

// IndexFile is the index file name inside the history directory.
const IndexFile = "index.json"

// ErrNotFound is returned when an entry's snapshot blob no longer exists on
// disk (pruned, or never committed).
var ErrNotFound = errors.New("snapshot not found")

// Store owns the on-disk history layout: an index file plus one snapshot
// directory per (day, profile), each holding versioned blob copies of local
// files. All index mutations run load -> mutate -> persist under an internal
// mutex; two concurrent writers must never race on the index file.
type Store struct {
	mu      sync.Mutex
	baseDir string
	policy  config.Retention
	index   *Index

	// highest ordinal handed out per (local path, op, profile) but not yet
	// committed to the index, so overlapping snapshots of one file never
	// share a version number
	reserved map[string]int
}

// NewStore creates a Store rooted at baseDir with the given retention
// policy. The directory is created lazily on first snapshot.
func NewStore(baseDir string, policy config.Retention) *Store {
	return &Store{baseDir: baseDir, policy: policy, reserved: map[string]int{}}
}

// BaseDir returns the history directory.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// loadLocked returns the in-memory index, reading it from disk on first
// access. A missing or corrupt index file falls back to an empty index so a
// damaged file never blocks the whole system from starting.
func (s *Store) loadLocked() *Index {
	if s.index != nil {
		return s.index
	}
	s.index = &Index{Entries: []Entry{}}
	data, err := os.ReadFile(filepath.Join(s.baseDir, IndexFile))
	if err != nil {
		return s.index
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		util.Default.Printf("⚠️  History index unreadable, starting empty: %v\n", err)
		return s.index
	}
	if idx.Entries == nil {
		idx.Entries = []Entry{}
	}
	s.index = &idx
	return s.index
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(s.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create history dir: %v", err)
	}
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.baseDir, IndexFile), data, 0644)
}

// snapshotDir derives the blob directory for a (timestamp, profile) pair.
func (s *Store) snapshotDir(ts time.Time, profile string) string {
	return filepath.Join(s.baseDir, ts.Format("2006-01-02")+"_"+profile)
}

// blobName derives an entry's blob file name. The basename alone is not
// unique inside a snapshot directory: two files called a.txt in different
// directories, or an upload and a download of one file, all land in the
// same (day, profile) dir. The name therefore carries a short hash of the
// op and the full local path next to the version ordinal, so every entry
// maps to its own blob.
func blobName(e Entry) string {
	tag := xxhash.Sum64String(string(e.Op) + "\x00" + e.LocalPath)
	return fmt.Sprintf("%s.%08x.v%d", filepath.Base(e.LocalPath), uint32(tag), e.Version)
}

func ordinalKey(e *Entry) string {
	return e.LocalPath + "\x00" + string(e.Op) + "\x00" + e.Profile
}

// BackupFile copies the current bytes of localPath into a new snapshot blob
// and fills e.Size, e.Hash and e.Version. The version ordinal is 1 plus the
// highest ordinal already indexed or reserved for the same (local path, op,
// profile) triple; it never comes from a filesystem scan, so ordinals
// strictly increase and are never reused even after older entries were
// pruned from the index. Reservations are not released when a transfer
// fails, which leaves a gap in the numbering rather than a collision. When
// localPath does not exist nothing is copied and the returned location is
// empty: there is nothing to roll back to, and the caller must not commit
// the entry.
func (s *Store) BackupFile(localPath string, e *Entry) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to open %s for snapshot: %v", localPath, err)
	}
	defer src.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadLocked()
	ordinal := 1
	for _, prev := range idx.Entries {
		if prev.LocalPath == e.LocalPath && prev.Op == e.Op && prev.Profile == e.Profile && prev.Version >= ordinal {
			ordinal = prev.Version + 1
		}
	}
	key := ordinalKey(e)
	if r := s.reserved[key]; r >= ordinal {
		ordinal = r + 1
	}
	s.reserved[key] = ordinal
	e.Version = ordinal

	dir := s.snapshotDir(e.Timestamp, e.Profile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %v", err)
	}
	dst := filepath.Join(dir, blobName(*e))

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create snapshot blob: %v", err)
	}
	defer out.Close()

	hash := xxhash.New()
	n, err := io.Copy(io.MultiWriter(out, hash), src)
	if err != nil {
		return "", fmt.Errorf("failed to copy snapshot data: %v", err)
	}
	e.Size = n
	e.Hash = fmt.Sprintf("%x", hash.Sum(nil))
	return dst, nil
}

// AddEntry appends a committed entry to the index, persists it, then runs
// retention pruning.
func (s *Store) AddEntry(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadLocked()
	idx.Entries = append(idx.Entries, e)
	if err := s.persistLocked(); err != nil {
		return err
	}
	return s.pruneLocked()
}

// HistoryForFile returns all committed entries for localPath, newest first.
func (s *Store) HistoryForFile(localPath string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Entry
	for _, e := range s.loadLocked().Entries {
		if e.LocalPath == localPath {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out
}

// AllEntries returns every committed entry, newest first.
func (s *Store) AllEntries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.loadLocked()
	out := make([]Entry, len(idx.Entries))
	copy(out, idx.Entries)
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Version > entries[j].Version
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
}

// BackupPath re-derives the snapshot blob location for an entry from its
// timestamp and profile. Returns ErrNotFound when no blob exists there
// anymore (directory cleaned by pruning, or entry never committed).
func (s *Store) BackupPath(e Entry) (string, error) {
	p := filepath.Join(s.snapshotDir(e.Timestamp, e.Profile), blobName(e))
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// ClearHistory deletes every snapshot directory and blob and resets the
// index to empty. Irreversible; also the only mechanism that reclaims
// snapshot blobs of transfers that never committed.
func (s *Store) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, de := range entries {
		if de.IsDir() {
			if rmErr := os.RemoveAll(filepath.Join(s.baseDir, de.Name())); rmErr != nil {
				util.Default.Printf("⚠️  Failed to remove snapshot dir %s: %v\n", de.Name(), rmErr)
			}
		}
	}
	s.index = &Index{Entries: []Entry{}}
	return s.persistLocked()
}

// pruneLocked enforces the retention policy across the whole index: per
// local path, entries beyond the max-version cutoff (newest first) and
// entries older than max-age are deleted, as a union. A zero cap disables
// the respective rule. Blob removal failures are logged and swallowed; the
// index record goes away regardless, since a missing blob just means
// "nothing to restore" at lookup time.
func (s *Store) pruneLocked() error {
	idx := s.loadLocked()

	byPath := map[string][]int{}
	for i, e := range idx.Entries {
		byPath[e.LocalPath] = append(byPath[e.LocalPath], i)
	}

	var ageCutoff time.Time
	if s.policy.MaxAgeDays > 0 {
		ageCutoff = time.Now().AddDate(0, 0, -s.policy.MaxAgeDays)
	}

	doomed := map[int]bool{}
	for _, group := range byPath {
		ordered := make([]int, len(group))
		copy(ordered, group)
		sort.SliceStable(ordered, func(a, b int) bool {
			ea, eb := idx.Entries[ordered[a]], idx.Entries[ordered[b]]
			if ea.Timestamp.Equal(eb.Timestamp) {
				return ea.Version > eb.Version
			}
			return ea.Timestamp.After(eb.Timestamp)
		})
		for rank, i := range ordered {
			e := idx.Entries[i]
			if s.policy.MaxVersions > 0 && rank >= s.policy.MaxVersions {
				doomed[i] = true
			}
			if s.policy.MaxAgeDays > 0 && e.Timestamp.Before(ageCutoff) {
				doomed[i] = true
			}
		}
	}

	if len(doomed) == 0 {
		return nil
	}

	kept := make([]Entry, 0, len(idx.Entries)-len(doomed))
	for i, e := range idx.Entries {
		if !doomed[i] {
			kept = append(kept, e)
			continue
		}
		s.removeBlob(e)
	}
	idx.Entries = kept
	return s.persistLocked()
}

// removeBlob deletes an entry's snapshot blob and, if that leaves the
// containing snapshot directory empty, the directory too.
func (s *Store) removeBlob(e Entry) {
	dir := s.snapshotDir(e.Timestamp, e.Profile)
	blob := filepath.Join(dir, blobName(e))
	if err := os.Remove(blob); err != nil && !os.IsNotExist(err) {
		util.Default.Printf("⚠️  Failed to remove pruned snapshot %s: %v\n", blob, err)
		return
	}
	// os.Remove refuses non-empty directories, which is exactly what we want
	_ = os.Remove(dir)
}
