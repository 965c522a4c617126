package storage

import "os"

// BlobStore persists whole files. Implementations must never leave a
// partially written file at path.
type BlobStore interface {
	// Write replaces the file at path with data.
	Write(path string, data []byte, mode os.FileMode) error

	// Read retrieves file contents. A missing file yields an error that
	// matches os.ErrNotExist.
	Read(path string) ([]byte, error)

	// Exists checks if a file exists.
	Exists(path string) (bool, error)
}

