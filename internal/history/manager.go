package history

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager wraps every transfer in the two-phase snapshot protocol:
// RecordBefore snapshots the local pre-image and keeps the entry pending,
// RecordAfter commits it to the durable index once the transfer succeeded.
// A transfer that fails in between simply never calls RecordAfter, so no
// orphan index record is created. The snapshot blob of such a transfer
// stays on disk untracked until ClearHistory reclaims it; that bounded
// leakage is accepted rather than swept.
type Manager struct {
	store   *Store
	profile string

	mu      sync.Mutex
	pending map[string]Entry
}

// NewManager creates a Manager recording entries for the given profile.
func NewManager(store *Store, profile string) *Manager {
	return &Manager{
		store:   store,
		profile: profile,
		pending: map[string]Entry{},
	}
}

func pendingKey(op Op, localPath, remotePath string) string {
	return string(op) + "\x00" + localPath + "\x00" + remotePath
}

// RecordBefore builds a new entry for the upcoming transfer and, if a local
// file currently exists at localPath, snapshots it and marks the entry
// pending. When no local file exists there is nothing to roll back to, so
// no pending entry is kept and the matching RecordAfter becomes a no-op.
func (m *Manager) RecordBefore(op Op, localPath, remotePath string) error {
	e := Entry{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Op:         op,
		LocalPath:  localPath,
		RemotePath: remotePath,
		Profile:    m.profile,
	}

	loc, err := m.store.BackupFile(localPath, &e)
	if err != nil {
		return err
	}
	if loc == "" {
		return nil
	}

	m.mu.Lock()
	m.pending[pendingKey(op, localPath, remotePath)] = e
	m.mu.Unlock()
	return nil
}

// RecordAfter commits the pending entry for the given transfer key, if one
// exists, and clears the marker. Safe to call for transfers that never
// produced a pending entry.
func (m *Manager) RecordAfter(op Op, localPath, remotePath string) error {
	key := pendingKey(op, localPath, remotePath)

	m.mu.Lock()
	e, ok := m.pending[key]
	if ok {
		delete(m.pending, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.store.AddEntry(e)
}

// HistoryForFile returns committed entries for localPath, newest first.
func (m *Manager) HistoryForFile(localPath string) []Entry {
	return m.store.HistoryForFile(localPath)
}

// AllEntries returns every committed entry, newest first.
func (m *Manager) AllEntries() []Entry {
	return m.store.AllEntries()
}

// Restore overwrites the entry's local path with its snapshot blob bytes, a
// full replace. Returns ErrNotFound when the blob is gone.
func (m *Manager) Restore(e Entry) error {
	blob, err := m.store.BackupPath(e)
	if err != nil {
		return err
	}

	src, err := os.Open(blob)
	if err != nil {
		return fmt.Errorf("failed to open snapshot %s: %v", blob, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(e.LocalPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directories: %v", err)
	}
	dst, err := os.Create(e.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %v", e.LocalPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to restore %s: %v", e.LocalPath, err)
	}
	return nil
}

// ClearHistory wipes the whole history store.
func (m *Manager) ClearHistory() error {
	return m.store.ClearHistory()
}
