package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
)

// TestPassphrase is the passphrase used by store fixtures.
const TestPassphrase = "pw"

// TestIterations keeps key derivation fast in tests.
const TestIterations = 10000

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// SampleRecord is the record used throughout the store scenarios.
func SampleRecord() models.ConnectionRecord {
	return models.ConnectionRecord{
		Label:    "db",
		Username: "alice",
		Password: "x",
		Host:     "10.0.0.1",
	}
}

// SampleRecords returns a small, ordered store content.
func SampleRecords() []models.ConnectionRecord {
	return []models.ConnectionRecord{
		SampleRecord(),
		{Label: "web", Username: "root", Password: "s3cret", Host: "web.example.com"},
		{Label: "bastion", Username: "ops", Password: "p@ss word", Host: "bastion.example.com:2222"},
	}
}

// LegacyLines is a plaintext connections file in the line-per-record format.
var LegacyLines = strings.Join([]string{
	`{"label": "db", "username": "alice", "password": "x", "host": "10.0.0.1"}`,
	`{"label": "web", "username": "root", "password": "s3cret", "host": "web.example.com"}`,
	`not json`,
	`{"label": "nohost", "username": "bob", "password": "y", "host": ""}`,
	``,
}, "\n")

// TestConfig creates a configuration whose store lives in a temp dir.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	return TestConfigWithDir(t.TempDir())
}

// TestConfigWithDir creates a test configuration rooted at dataDir.
func TestConfigWithDir(dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dataDir, "connections.vault")
	cfg.Crypto.Iterations = TestIterations
	cfg.Crypto.SaltSize = 16
	cfg.Session.KnownHostsFile = filepath.Join(dataDir, "known_hosts")
	cfg.Session.DialTimeout = 5 * time.Second
	cfg.Log = config.LogConfig{
		Level:  "debug",
		Format: "json",
		Color:  false,
	}
	return cfg
}

// WriteLegacyFile writes LegacyLines into dir and returns its path.
func WriteLegacyFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, ".ssh_connections")
	require.NoError(t, os.WriteFile(path, []byte(LegacyLines), 0600))
	return path
}
