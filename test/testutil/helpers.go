package testutil

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimeout provides timeout context for tests.
func TestTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

// TestContext creates a test context with reasonable timeout.
func TestContext() (context.Context, context.CancelFunc) {
	return TestTimeout(30 * time.Second)
}

// ReadFile returns the bytes at path, failing the test if unreadable.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read %s", path)
	return data
}

// AssertFileNotExists checks that a file does not exist.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "File should not exist: %s", path)
}

// AssertNoTempFiles checks that no atomic-write leftovers remain in dir.
func AssertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp.*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp files left behind")
}

// LogEntry is one decoded JSON log line.
type LogEntry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"msg"`
	Fields  map[string]interface{} `json:"-"`
}

// LogOutput captures JSON log output for testing.
type LogOutput struct {
	mu      sync.RWMutex
	raw     strings.Builder
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	lo.mu.Lock()
	defer lo.mu.Unlock()

	lo.raw.Write(p)

	for _, line := range strings.Split(strings.TrimSpace(string(p)), "\n") {
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		_ = json.Unmarshal([]byte(line), &entry.Fields)
		lo.entries = append(lo.entries, entry)
	}
	return len(p), nil
}

// String returns everything written so far.
func (lo *LogOutput) String() string {
	lo.mu.RLock()
	defer lo.mu.RUnlock()
	return lo.raw.String()
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if strings.Contains(entry.Message, message) {
			return true
		}
	}
	return false
}
