package syncer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// FileRecord is one file's last-synced state in the skip-cache database.
type FileRecord struct {
	ID        uint      `gorm:"primarykey"`
	Path      string    `gorm:"uniqueIndex;not null"`
	Hash      string    `gorm:"not null"`
	Size      int64     `gorm:"not null"`
	ModTime   time.Time `gorm:"not null"`
	LastSync  time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FileCache lets SyncAll skip files whose content hash is unchanged since
// the last successful transfer. Purely an optimization: losing the cache
// only causes re-uploads, never missed ones.
type FileCache struct {
	db *gorm.DB
}

// NewFileCache opens (or creates) the cache database at dbPath.
func NewFileCache(dbPath string) (*FileCache, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %v", err)
	}
	if err := db.AutoMigrate(&FileRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache database: %v", err)
	}
	return &FileCache{db: db}, nil
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hash := xxhash.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", hash.Sum(nil)), n, nil
}

// Unchanged reports whether path's content hash matches the cached record.
// Any stat, hash or lookup failure counts as changed.
func (c *FileCache) Unchanged(path string) bool {
	var rec FileRecord
	if err := c.db.Where("path = ?", path).First(&rec).Error; err != nil {
		return false
	}
	// cheap pre-check before hashing
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.Size() != rec.Size {
		return false
	}
	hash, _, err := hashFile(path)
	if err != nil {
		return false
	}
	return hash == rec.Hash
}

// MarkSynced records path's current hash, size and mtime after a successful
// transfer.
func (c *FileCache) MarkSynced(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hash, size, err := hashFile(path)
	if err != nil {
		return err
	}

	var rec FileRecord
	err = c.db.Where("path = ?", path).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = FileRecord{
			Path:     path,
			Hash:     hash,
			Size:     size,
			ModTime:  info.ModTime(),
			LastSync: time.Now(),
		}
		return c.db.Create(&rec).Error
	}
	if err != nil {
		return err
	}
	rec.Hash = hash
	rec.Size = size
	rec.ModTime = info.ModTime()
	rec.LastSync = time.Now()
	return c.db.Save(&rec).Error
}

// Reset clears every cached record, forcing the next SyncAll to re-hash and
// re-upload everything.
func (c *FileCache) Reset() error {
	return c.db.Unscoped().Where("1 = 1").Delete(&FileRecord{}).Error
}
