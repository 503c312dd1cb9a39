package rollback

import (
	"fmt"
	"strings"

	"revsync/internal/history"
	"revsync/internal/syncer"
)

// Selector picks one entry from a newest-first history listing. Returning
// ok=false declines the rollback, which is a clean skip rather than an
// error.
type Selector func(entries []history.Entry) (index int, ok bool)

// Engine restores historical snapshots. It reuses the sync engine for the
// optional re-upload after a restore.
type Engine struct {
	hist *history.Manager
	sync *syncer.Syncer
}

// New builds a rollback engine. sync may be nil when re-upload is never
// requested.
func New(hist *history.Manager, sync *syncer.Syncer) *Engine {
	return &Engine{hist: hist, sync: sync}
}

// RollbackFile lets the caller pick one historical snapshot of localPath
// and restores it. When reupload is true the restored file is pushed back
// to the remote afterwards.
func (e *Engine) RollbackFile(localPath string, choose Selector, reupload bool) error {
	entries := e.hist.HistoryForFile(localPath)
	if len(entries) == 0 {
		return fmt.Errorf("no history for %s", localPath)
	}

	i, ok := choose(entries)
	if !ok {
		return nil
	}
	if i < 0 || i >= len(entries) {
		return fmt.Errorf("invalid history selection %d", i)
	}

	if err := e.hist.Restore(entries[i]); err != nil {
		return err
	}

	if reupload {
		if e.sync == nil {
			return fmt.Errorf("re-upload requested but no sync engine wired")
		}
		res := e.sync.UploadFile(localPath)
		if !res.Success {
			return fmt.Errorf("re-upload failed: %s", strings.Join(res.Errors, "; "))
		}
	}
	return nil
}

// RollbackBatch restores the single most recent snapshot for each path,
// collecting per-file failures without aborting the batch. Mirrors the sync
// engine's partial-failure policy.
func (e *Engine) RollbackBatch(paths []string) syncer.Result {
	res := syncer.Result{}
	for _, p := range paths {
		entries := e.hist.HistoryForFile(p)
		if len(entries) == 0 {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: no history", p))
			continue
		}
		if err := e.hist.Restore(entries[0]); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		res.FilesProcessed++
	}
	res.Success = len(res.Errors) == 0
	return res
}
