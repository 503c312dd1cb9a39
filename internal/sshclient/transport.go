package sshclient

import "time"

// EntryKind classifies a remote directory entry.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	KindLink
)

// DirEntry is one remote directory listing entry.
type DirEntry struct {
	Name    string
	Kind    EntryKind
	Size    int64
	ModTime time.Time
}

// Transport is the capability surface the sync engine needs from a remote
// file channel. UploadFile must create remote parent directories,
// DownloadFile must create local parent directories, Delete is recursive
// for directories.
type Transport interface {
	Connect() error
	Close() error
	ListDir(path string) ([]DirEntry, error)
	Exists(path string) (bool, error)
	UploadFile(localPath, remotePath string) error
	DownloadFile(remotePath, localPath string) error
	Delete(path string) error
	Rename(oldPath, newPath string) error
}
