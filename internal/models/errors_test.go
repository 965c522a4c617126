package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/TheMichaelB/lssh/internal/models"
)

func TestSessionError(t *testing.T) {
	tests := []struct {
		name string
		err  *models.SessionError
		want string
	}{
		{
			name: "launch failure",
			err: &models.SessionError{
				Username: "alice",
				Host:     "10.0.0.1",
				Err:      errors.New("connection refused"),
			},
			want: "session alice@10.0.0.1: connection refused",
		},
		{
			name: "non-zero exit",
			err: &models.SessionError{
				Username:   "bob",
				Host:       "db.internal",
				ExitStatus: 255,
			},
			want: "session bob@db.internal exited with status 255",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("disk full")
	err := &models.PersistenceError{Op: "write", Path: "/tmp/store", Err: cause}

	assert.Equal(t, "write /tmp/store: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestNotSelectableError(t *testing.T) {
	err := &models.NotSelectableError{Selector: models.Selector{Label: "missing", Username: "nobody"}}

	assert.ErrorIs(t, err, models.ErrNotSelectable)
	assert.Equal(t, "connection not found: missing (nobody)", err.Error())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("load: %w", models.ErrNotFound), models.ErrCodeNotFound},
		{"auth", models.ErrAuthentication, models.ErrCodeAuth},
		{"mismatch", models.ErrMismatch, models.ErrCodeMismatch},
		{"exists", models.ErrAlreadyExists, models.ErrCodeAlreadyExists},
		{"empty", models.ErrEmptyStore, models.ErrCodeEmptyStore},
		{"not selectable", &models.NotSelectableError{}, models.ErrCodeNotSelectable},
		{"session", &models.SessionError{ExitStatus: 1}, models.ErrCodeSession},
		{"persistence", &models.PersistenceError{Err: errors.New("x")}, models.ErrCodePersistence},
		{"invalid record", &models.InvalidRecordError{Err: models.ErrEmptyHost}, models.ErrCodeInvalidInput},
		{"empty passphrase", models.ErrEmptyPassphrase, models.ErrCodeInvalidInput},
		{"other", errors.New("boom"), models.ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, models.ErrorCode(tt.err))
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"not found", models.ErrNotFound, "--init"},
		{"auth", fmt.Errorf("decrypt: %w", models.ErrAuthentication), "Wrong passphrase or corrupted"},
		{"mismatch", models.ErrMismatch, "do not match"},
		{"exists", models.ErrAlreadyExists, "refusing to overwrite"},
		{"empty", models.ErrEmptyStore, "No connections available."},
		{"stale selection", &models.NotSelectableError{Selector: models.Selector{Label: "db", Username: "alice"}}, "db (alice)"},
		{"session exit", &models.SessionError{Username: "alice", Host: "h", ExitStatus: 3}, "exited with status 3"},
		{"session launch", &models.SessionError{Username: "alice", Host: "h", Err: errors.New("refused")}, "Failed to connect to alice@h: refused"},
		{"persistence", &models.PersistenceError{Op: "write", Path: "/p", Err: errors.New("denied")}, "Could not write /p"},
		{"invalid record", &models.InvalidRecordError{Err: models.ErrEmptyLabel}, "label is required"},
		{"other", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, models.UserMessage(tt.err), tt.contains)
		})
	}

	assert.Empty(t, models.UserMessage(nil))
}
