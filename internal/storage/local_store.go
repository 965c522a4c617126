package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheMichaelB/lssh/internal/events"
)

// DefaultMaxFileSize bounds reads and writes when no limit is configured.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrSymlink      = errors.New("symlinks not allowed")
	ErrInvalidPath  = errors.New("invalid path")
)

// LocalStore implements BlobStore on the local file system. Writes go to a
// temp file in the target directory which is synced and then renamed over
// the target, so readers see either the old or the new content.
type LocalStore struct {
	logger      *events.Logger
	maxFileSize int64
	dirMode     os.FileMode

	// beforeRename runs after the temp file is synced and before it
	// replaces the target.
	beforeRename func(tempPath string) error
}

// NewLocalStore creates a local file store.
func NewLocalStore(logger *events.Logger) *LocalStore {
	return &LocalStore{
		logger:      logger.WithField("component", "local_store"),
		maxFileSize: DefaultMaxFileSize,
		dirMode:     0700,
	}
}

// SetMaxFileSize sets the maximum file size limit. Non-positive values
// restore the default.
func (s *LocalStore) SetMaxFileSize(size int64) {
	if size <= 0 {
		size = DefaultMaxFileSize
	}
	s.maxFileSize = size
}

// Write saves data to a file atomically.
func (s *LocalStore) Write(path string, data []byte, mode os.FileMode) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"path": safePath,
		"size": len(data),
	}).Debug("Writing file")

	if int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, len(data), s.maxFileSize)
	}

	if err := s.checkSymlink(safePath); err != nil {
		return err
	}

	parentDir := filepath.Dir(safePath)
	if err := os.MkdirAll(parentDir, s.dirMode); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tempPath := fmt.Sprintf("%s.tmp.%d", safePath, time.Now().UnixNano())
	tempFile, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, mode)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	// OpenFile is subject to umask
	if err := tempFile.Chmod(mode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if s.beforeRename != nil {
		if err := s.beforeRename(tempPath); err != nil {
			return err
		}
	}

	if err := os.Rename(tempPath, safePath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	success = true

	syncDir(parentDir)

	return nil
}

// Read retrieves file contents.
func (s *LocalStore) Read(path string) ([]byte, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return nil, err
	}

	if err := s.checkSymlink(safePath); err != nil {
		return nil, err
	}

	stat, err := os.Stat(safePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file not found: %s: %w", path, os.ErrNotExist)
		}
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if stat.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d)", ErrFileTooLarge, stat.Size(), s.maxFileSize)
	}

	data, err := os.ReadFile(safePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	return data, nil
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return false, err
	}

	_, err = os.Lstat(safePath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Helper methods

// sanitizePath validates and normalizes a file path.
func (s *LocalStore) sanitizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: path contains null bytes", ErrInvalidPath)
	}

	absPath, err := filepath.Abs(filepath.Clean(filepath.FromSlash(path)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	return absPath, nil
}

// checkSymlink refuses to follow a symlink at the target itself.
func (s *LocalStore) checkSymlink(path string) error {
	stat, err := os.Lstat(path)
	if err == nil && stat.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: %s", ErrSymlink, path)
	}
	return nil
}

// syncDir flushes a rename to disk. Not every platform supports syncing a
// directory, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
