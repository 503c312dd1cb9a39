package history

import (
	"os"
	"path/filepath"
	"testing"

	"revsync/internal/config"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "history"), config.Retention{})
	return NewManager(store, "test"), dir
}

func TestTwoPhaseCommit(t *testing.T) {
	m, dir := newTestManager(t)
	local := filepath.Join(dir, "a.txt")
	writeFile(t, local, "v1")

	if err := m.RecordBefore(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordBefore failed: %v", err)
	}
	// not committed yet
	if entries := m.HistoryForFile(local); len(entries) != 0 {
		t.Fatalf("entry leaked into index before RecordAfter: %d", len(entries))
	}

	if err := m.RecordAfter(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordAfter failed: %v", err)
	}
	entries := m.HistoryForFile(local)
	if len(entries) != 1 {
		t.Fatalf("expected 1 committed entry, got %d", len(entries))
	}
	if entries[0].Op != OpUpload || entries[0].Profile != "test" || entries[0].ID == "" {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

// A transfer that fails never calls RecordAfter; no index record may appear.
func TestFailedTransferNeverCommits(t *testing.T) {
	m, dir := newTestManager(t)
	local := filepath.Join(dir, "a.txt")
	writeFile(t, local, "v1")

	if err := m.RecordBefore(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordBefore failed: %v", err)
	}
	// transfer "fails" here: RecordAfter is never called
	if entries := m.HistoryForFile(local); len(entries) != 0 {
		t.Fatalf("uncommitted entry leaked into durable index")
	}

	// a later unrelated transfer must not resurrect the stale pending entry
	if err := m.RecordAfter(OpDownload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordAfter failed: %v", err)
	}
	if entries := m.HistoryForFile(local); len(entries) != 0 {
		t.Fatalf("mismatched RecordAfter committed something")
	}
}

// When no local file exists there is nothing to snapshot, so RecordAfter
// must commit nothing.
func TestNoCommitWithoutSnapshot(t *testing.T) {
	m, dir := newTestManager(t)
	local := filepath.Join(dir, "new-download.txt")

	if err := m.RecordBefore(OpDownload, local, "/srv/new.txt"); err != nil {
		t.Fatalf("RecordBefore failed: %v", err)
	}
	if err := m.RecordAfter(OpDownload, local, "/srv/new.txt"); err != nil {
		t.Fatalf("RecordAfter failed: %v", err)
	}
	if entries := m.HistoryForFile(local); len(entries) != 0 {
		t.Fatalf("committed an entry without a snapshot")
	}
}

// Restoring the same entry twice must produce byte-identical content.
func TestRestoreIdempotent(t *testing.T) {
	m, dir := newTestManager(t)
	local := filepath.Join(dir, "a.txt")
	writeFile(t, local, "original content")

	if err := m.RecordBefore(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordBefore failed: %v", err)
	}
	if err := m.RecordAfter(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordAfter failed: %v", err)
	}
	entry := m.HistoryForFile(local)[0]

	writeFile(t, local, "changed since then")

	if err := m.Restore(entry); err != nil {
		t.Fatalf("first Restore failed: %v", err)
	}
	first, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if err := m.Restore(entry); err != nil {
		t.Fatalf("second Restore failed: %v", err)
	}
	second, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if string(first) != "original content" || string(first) != string(second) {
		t.Fatalf("restore not idempotent: %q vs %q", first, second)
	}
}

func TestRestoreMissingBlob(t *testing.T) {
	m, dir := newTestManager(t)
	local := filepath.Join(dir, "a.txt")
	writeFile(t, local, "data")

	if err := m.RecordBefore(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordBefore failed: %v", err)
	}
	if err := m.RecordAfter(OpUpload, local, "/srv/a.txt"); err != nil {
		t.Fatalf("RecordAfter failed: %v", err)
	}
	entry := m.HistoryForFile(local)[0]

	blob, err := m.store.BackupPath(entry)
	if err != nil {
		t.Fatalf("BackupPath failed: %v", err)
	}
	if err := os.Remove(blob); err != nil {
		t.Fatalf("failed to remove blob: %v", err)
	}

	if err := m.Restore(entry); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
