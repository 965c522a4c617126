package events_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
)

func TestNewLogger(t *testing.T) {
	cfg := &config.LogConfig{
		Level:  "debug",
		Format: "json",
		File:   "",
	}

	logger, err := events.NewLogger(cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.True(t, logger.Enabled(events.DebugLevel))
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lssh.log")
	logger, err := events.NewLogger(&config.LogConfig{Level: "info", Format: "text", File: path})
	require.NoError(t, err)

	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoggerWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	logger.WithField("test_key", "test_value").Info("test message")

	output := buf.String()
	assert.Contains(t, output, `"test_key":"test_value"`)
	assert.Contains(t, output, `"msg":"test message"`)
	assert.Contains(t, output, `"level":"info"`)
}

func TestLoggerWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	fields := map[string]interface{}{
		"label":    "db",
		"username": "alice",
		"records":  3,
	}

	logger.WithFields(fields).Info("multi-field test")

	output := buf.String()
	assert.Contains(t, output, `"label":"db"`)
	assert.Contains(t, output, `"username":"alice"`)
	assert.Contains(t, output, `"records":3`)
	assert.Contains(t, output, `"msg":"multi-field test"`)
}

func TestLoggerWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := events.NewTestLogger(events.InfoLevel, "json", &buf)

	_ = parent.WithField("child", true)
	parent.Info("parent only")

	assert.NotContains(t, buf.String(), "child")
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  events.LogLevel
		msgLevel  events.LogLevel
		shouldLog bool
	}{
		{"debug logger, debug message", events.DebugLevel, events.DebugLevel, true},
		{"debug logger, info message", events.DebugLevel, events.InfoLevel, true},
		{"info logger, debug message", events.InfoLevel, events.DebugLevel, false},
		{"info logger, info message", events.InfoLevel, events.InfoLevel, true},
		{"error logger, warn message", events.ErrorLevel, events.WarnLevel, false},
		{"error logger, error message", events.ErrorLevel, events.ErrorLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := events.NewTestLogger(tt.logLevel, "text", &buf)

			switch tt.msgLevel {
			case events.DebugLevel:
				logger.Debug("test debug")
			case events.InfoLevel:
				logger.Info("test info")
			case events.WarnLevel:
				logger.Warn("test warn")
			case events.ErrorLevel:
				logger.Error("test error")
			}

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "text", &buf)

	logger.WithFields(map[string]interface{}{"b": 2, "a": 1}).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, "a=1 b=2")
	assert.True(t, strings.HasSuffix(output, "\n"))
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := events.NewTestLogger(events.InfoLevel, "json", &buf)

	err := assert.AnError
	logger.WithError(err).Error("operation failed")

	output := buf.String()
	assert.Contains(t, output, `"error":"assert.AnError general error for testing"`)
	assert.Contains(t, output, `"msg":"operation failed"`)
	assert.Contains(t, output, `"level":"error"`)
}

func TestDiscard(t *testing.T) {
	logger := events.Discard()
	assert.False(t, logger.Enabled(events.ErrorLevel))
	logger.Error("dropped")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, events.DebugLevel, events.ParseLevel("DEBUG"))
	assert.Equal(t, events.WarnLevel, events.ParseLevel("warn"))
	assert.Equal(t, events.ErrorLevel, events.ParseLevel("error"))
	assert.Equal(t, events.InfoLevel, events.ParseLevel("bogus"))
}
