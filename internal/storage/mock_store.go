package storage

import (
	"fmt"
	"os"
	"sync"
)

// MockStore provides an in-memory BlobStore for testing.
type MockStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	modes map[string]os.FileMode

	// WriteErr, when set, is returned by Write and nothing is stored.
	WriteErr error
	// ReadErr, when set, is returned by Read for existing files.
	ReadErr error
	// Writes counts successful writes.
	Writes int
}

// NewMockStore creates a mock blob store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		modes: make(map[string]os.FileMode),
	}
}

// Write saves data to a file.
func (m *MockStore) Write(path string, data []byte, mode os.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteErr != nil {
		return m.WriteErr
	}

	m.files[path] = append([]byte(nil), data...)
	m.modes[path] = mode
	m.Writes++
	return nil
}

// Read retrieves file contents.
func (m *MockStore) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path, os.ErrNotExist)
	}
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}

	return append([]byte(nil), data...), nil
}

// Exists checks if a file exists.
func (m *MockStore) Exists(path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.files[path]
	return exists, nil
}

// Helper methods for testing

// Put stores data without touching the write counter or WriteErr.
func (m *MockStore) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files[path] = append([]byte(nil), data...)
	m.modes[path] = 0600
}

// Contents returns a copy of the stored bytes and whether the file exists.
func (m *MockStore) Contents(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Clear removes all files.
func (m *MockStore) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.files = make(map[string][]byte)
	m.modes = make(map[string]os.FileMode)
	m.Writes = 0
}
