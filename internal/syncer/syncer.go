package syncer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"revsync/internal/config"
	"revsync/internal/exclude"
	"revsync/internal/history"
	"revsync/internal/pathmap"
	"revsync/internal/sshclient"
	"revsync/internal/util"
)

// Result aggregates one sync or rollback operation. Per-file failures in
// batch contexts land in Errors and never abort the batch; Success is false
// only when at least one error was collected or a precondition failed.
type Result struct {
	Success        bool
	FilesProcessed int
	Errors         []string
}

func failure(err error) Result {
	return Result{Success: false, Errors: []string{err.Error()}}
}

// Prompter answers yes/no questions on behalf of the user. A nil Prompter
// behaves as if every question were answered yes.
type Prompter interface {
	Confirm(question string) bool
}

// ProgressFunc receives per-file progress during bulk operations.
type ProgressFunc func(done, total int, relPath string)

// Syncer is the sync engine: it enumerates file sets, applies exclusions,
// and performs transfers wrapped in the history manager's two-phase
// snapshot protocol.
type Syncer struct {
	cfg      *config.Config
	profile  *config.Profile
	client   sshclient.Transport
	hist     *history.Manager
	resolver pathmap.Resolver
	matcher  *exclude.Matcher

	Prompter Prompter
	Progress ProgressFunc
	Cache    *FileCache
}

// New wires a sync engine for the given profile.
func New(cfg *config.Config, profile *config.Profile, client sshclient.Transport, hist *history.Manager) *Syncer {
	return &Syncer{
		cfg:      cfg,
		profile:  profile,
		client:   client,
		hist:     hist,
		resolver: pathmap.NewResolver(cfg.LocalPath, profile.RemotePath),
		matcher:  exclude.NewMatcher(profile.Excludes),
	}
}

// Resolver exposes the engine's path mapping (used by the scheduler and CLI).
func (s *Syncer) Resolver() pathmap.Resolver {
	return s.resolver
}

// Matcher exposes the engine's exclusion matcher.
func (s *Syncer) Matcher() *exclude.Matcher {
	return s.matcher
}

func (s *Syncer) confirm(question string) bool {
	if s.Prompter == nil {
		return true
	}
	return s.Prompter.Confirm(question)
}

// transferUp runs the shared per-file upload policy: overwrite
// confirmation, pre-image snapshot, transfer, commit. skipped is true when
// the user declined the overwrite; a skipped file is neither a success nor
// a failure.
func (s *Syncer) transferUp(localPath, remotePath string) (skipped bool, err error) {
	if s.cfg.Sync.ConfirmOverwrite {
		exists, err := s.client.Exists(remotePath)
		if err != nil {
			return false, fmt.Errorf("exists check failed: %v", err)
		}
		if exists && !s.confirm(fmt.Sprintf("Overwrite remote %s?", remotePath)) {
			return true, nil
		}
	}
	if err := s.hist.RecordBefore(history.OpUpload, localPath, remotePath); err != nil {
		return false, fmt.Errorf("snapshot failed: %v", err)
	}
	if err := s.client.UploadFile(localPath, remotePath); err != nil {
		return false, err
	}
	if err := s.hist.RecordAfter(history.OpUpload, localPath, remotePath); err != nil {
		return false, fmt.Errorf("history commit failed: %v", err)
	}
	if s.Cache != nil {
		if err := s.Cache.MarkSynced(localPath); err != nil {
			util.Default.Printf("⚠️  Failed to update sync cache for %s: %v\n", localPath, err)
		}
	}
	return false, nil
}

// transferDown mirrors transferUp for downloads; the pre-image snapshotted
// is the local file about to be overwritten.
func (s *Syncer) transferDown(remotePath, localPath string) (skipped bool, err error) {
	if s.cfg.Sync.ConfirmOverwrite {
		if _, statErr := os.Stat(localPath); statErr == nil {
			if !s.confirm(fmt.Sprintf("Overwrite local %s?", localPath)) {
				return true, nil
			}
		}
	}
	if err := s.hist.RecordBefore(history.OpDownload, localPath, remotePath); err != nil {
		return false, fmt.Errorf("snapshot failed: %v", err)
	}
	if err := s.client.DownloadFile(remotePath, localPath); err != nil {
		return false, err
	}
	if err := s.hist.RecordAfter(history.OpDownload, localPath, remotePath); err != nil {
		return false, fmt.Errorf("history commit failed: %v", err)
	}
	if s.Cache != nil {
		if err := s.Cache.MarkSynced(localPath); err != nil {
			util.Default.Printf("⚠️  Failed to update sync cache for %s: %v\n", localPath, err)
		}
	}
	return false, nil
}

// UploadFile pushes a single local file to its mapped remote path.
func (s *Syncer) UploadFile(localPath string) Result {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return failure(err)
	}
	remotePath, err := s.resolver.ToRemote(abs)
	if err != nil {
		return failure(err)
	}

	skipped, err := s.transferUp(abs, remotePath)
	if err != nil {
		return failure(fmt.Errorf("%s: %v", localPath, err))
	}
	if skipped {
		return Result{Success: true}
	}
	return Result{Success: true, FilesProcessed: 1}
}

// DownloadFile pulls a single file from its mapped remote path.
func (s *Syncer) DownloadFile(localPath string) Result {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return failure(err)
	}
	remotePath, err := s.resolver.ToRemote(abs)
	if err != nil {
		return failure(err)
	}

	skipped, err := s.transferDown(remotePath, abs)
	if err != nil {
		return failure(fmt.Errorf("%s: %v", localPath, err))
	}
	if skipped {
		return Result{Success: true}
	}
	return Result{Success: true, FilesProcessed: 1}
}

// DeleteRemote removes the remote counterpart of localPath. Nothing local
// changes, so no snapshot is taken; the prompter guards the destructive
// step instead.
func (s *Syncer) DeleteRemote(localPath string) Result {
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return failure(err)
	}
	remotePath, err := s.resolver.ToRemote(abs)
	if err != nil {
		return failure(err)
	}
	exists, err := s.client.Exists(remotePath)
	if err != nil {
		return failure(fmt.Errorf("exists check failed: %v", err))
	}
	if !exists {
		return Result{Success: true}
	}
	if !s.confirm(fmt.Sprintf("Delete remote %s?", remotePath)) {
		return Result{Success: true}
	}
	if err := s.client.Delete(remotePath); err != nil {
		return failure(fmt.Errorf("%s: %v", localPath, err))
	}
	return Result{Success: true, FilesProcessed: 1}
}

// MoveRemote renames the remote counterpart after a local rename, keeping
// both trees aligned without retransferring the content. The sync cache is
// updated so the renamed file is not re-uploaded by the next full sync.
func (s *Syncer) MoveRemote(oldLocal, newLocal string) Result {
	oldAbs, err := filepath.Abs(oldLocal)
	if err != nil {
		return failure(err)
	}
	newAbs, err := filepath.Abs(newLocal)
	if err != nil {
		return failure(err)
	}
	oldRemote, err := s.resolver.ToRemote(oldAbs)
	if err != nil {
		return failure(err)
	}
	newRemote, err := s.resolver.ToRemote(newAbs)
	if err != nil {
		return failure(err)
	}
	if err := s.client.Rename(oldRemote, newRemote); err != nil {
		return failure(fmt.Errorf("%s: %v", oldLocal, err))
	}
	if s.Cache != nil {
		if err := s.Cache.MarkSynced(newAbs); err != nil {
			util.Default.Printf("⚠️  Failed to update sync cache for %s: %v\n", newAbs, err)
		}
	}
	return Result{Success: true, FilesProcessed: 1}
}

// enumerateLocal walks root collecting regular files not excluded relative
// to the sync root. Excluded directories are skipped whole.
func (s *Syncer) enumerateLocal(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := s.resolver.Rel(p)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && s.matcher.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.matcher.Match(rel) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// walkRemote recursively lists remote files under dir, skipping excluded
// paths (relative to the remote root) and symlinks.
func (s *Syncer) walkRemote(dir string) ([]string, error) {
	entries, err := s.client.ListDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		full := path.Join(dir, e.Name)
		rel, relErr := s.resolver.RelRemote(full)
		if relErr != nil {
			continue
		}
		if s.matcher.Match(rel) {
			continue
		}
		switch e.Kind {
		case sshclient.KindDir:
			sub, err := s.walkRemote(full)
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
		case sshclient.KindFile:
			files = append(files, full)
		}
	}
	return files, nil
}

// runUploads iterates the enumerated local files, reporting progress and
// checking for cancellation before each transfer. Cancellation stops the
// remaining files; already transferred files stay.
func (s *Syncer) runUploads(ctx context.Context, files []string) Result {
	res := Result{}
	total := len(files)
	for i, f := range files {
		select {
		case <-ctx.Done():
			util.Default.Println("⏹ Sync cancelled")
			res.Success = len(res.Errors) == 0
			return res
		default:
		}

		rel, _ := s.resolver.Rel(f)
		if s.Progress != nil {
			s.Progress(i+1, total, rel)
		}
		remotePath, err := s.resolver.ToRemote(f)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		skipped, err := s.transferUp(f, remotePath)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		if !skipped {
			res.FilesProcessed++
		}
	}
	res.Success = len(res.Errors) == 0
	return res
}

// UploadFolder pushes every non-excluded file under folder.
func (s *Syncer) UploadFolder(ctx context.Context, folder string) Result {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return failure(err)
	}
	if !s.resolver.Contains(abs) {
		return failure(fmt.Errorf("%s is outside the sync root", folder))
	}
	files, err := s.enumerateLocal(abs)
	if err != nil {
		return failure(fmt.Errorf("enumeration failed: %v", err))
	}
	return s.runUploads(ctx, files)
}

// DownloadFolder pulls every non-excluded file under the remote folder
// mapped from the given local folder.
func (s *Syncer) DownloadFolder(ctx context.Context, folder string) Result {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return failure(err)
	}
	remoteDir, err := s.resolver.ToRemote(abs)
	if err != nil {
		return failure(err)
	}
	files, err := s.walkRemote(remoteDir)
	if err != nil {
		return failure(fmt.Errorf("remote enumeration failed: %v", err))
	}

	res := Result{}
	total := len(files)
	for i, rp := range files {
		select {
		case <-ctx.Done():
			util.Default.Println("⏹ Sync cancelled")
			res.Success = len(res.Errors) == 0
			return res
		default:
		}

		lp, err := s.resolver.ToLocal(rp)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rp, err))
			continue
		}
		rel, _ := s.resolver.RelRemote(rp)
		if s.Progress != nil {
			s.Progress(i+1, total, rel)
		}
		skipped, err := s.transferDown(rp, lp)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", rel, err))
			continue
		}
		if !skipped {
			res.FilesProcessed++
		}
	}
	res.Success = len(res.Errors) == 0
	return res
}

// SyncAll pushes the entire local tree. When a sync cache is wired, files
// whose content hash is unchanged since the last sync are skipped without a
// transfer and still counted as processed.
func (s *Syncer) SyncAll(ctx context.Context) Result {
	files, err := s.enumerateLocal(s.cfg.LocalPath)
	if err != nil {
		return failure(fmt.Errorf("enumeration failed: %v", err))
	}

	unchanged := 0
	if s.Cache != nil {
		changed := files[:0]
		for _, f := range files {
			if s.Cache.Unchanged(f) {
				unchanged++
				continue
			}
			changed = append(changed, f)
		}
		files = changed
		if unchanged > 0 {
			util.Default.Printf("⏭️  %d files unchanged since last sync\n", unchanged)
		}
	}

	res := s.runUploads(ctx, files)
	res.FilesProcessed += unchanged
	return res
}
