package history

import "time"

// Op is the transfer direction a history entry was recorded for.
type Op string

const (
	OpUpload   Op = "upload"
	OpDownload Op = "download"
)

// Entry is one committed transfer event. Each entry maps to exactly one
// snapshot blob on disk, taken from the local file before the transfer ran.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Op         Op        `json:"op"`
	LocalPath  string    `json:"local_path"`
	RemotePath string    `json:"remote_path"`
	Profile    string    `json:"profile"`
	Size       int64     `json:"size"`
	Hash       string    `json:"hash"`
	Version    int       `json:"version"`
}

// Index is the durable, ordered collection of committed entries. It is read
// fully into memory on first access and rewritten fully on every mutation;
// volume is small and mutations happen per transfer, not per byte.
type Index struct {
	Entries []Entry `json:"entries"`
}
