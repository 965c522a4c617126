package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeNotFound      = "STORE_NOT_FOUND"
	ErrCodeAuth          = "AUTH_ERROR"
	ErrCodeMismatch      = "PASSPHRASE_MISMATCH"
	ErrCodeAlreadyExists = "STORE_EXISTS"
	ErrCodeEmptyStore    = "STORE_EMPTY"
	ErrCodeNotSelectable = "NOT_SELECTABLE"
	ErrCodeSession       = "SESSION_ERROR"
	ErrCodePersistence   = "PERSISTENCE_ERROR"
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnknown       = "UNKNOWN_ERROR"
)

// Sentinel errors
var (
	ErrNotFound        = errors.New("connection store not found")
	ErrAuthentication  = errors.New("wrong passphrase or corrupted store")
	ErrMismatch        = errors.New("passphrases do not match")
	ErrAlreadyExists   = errors.New("connection store already exists")
	ErrEmptyStore      = errors.New("no connections available")
	ErrNotSelectable   = errors.New("connection not found")
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")
)

// SessionError reports a failed or unsuccessful remote session.
type SessionError struct {
	Username   string
	Host       string
	ExitStatus int
	Err        error
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session %s@%s: %v", e.Username, e.Host, e.Err)
	}
	return fmt.Sprintf("session %s@%s exited with status %d", e.Username, e.Host, e.ExitStatus)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// PersistenceError represents an I/O failure while reading or writing the store.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NotSelectableError carries the selector that failed to resolve.
type NotSelectableError struct {
	Selector Selector
}

func (e *NotSelectableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrNotSelectable, e.Selector)
}

func (e *NotSelectableError) Unwrap() error {
	return ErrNotSelectable
}

// InvalidRecordError wraps a validation failure of user input.
type InvalidRecordError struct {
	Err error
}

func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid connection: %v", e.Err)
}

func (e *InvalidRecordError) Unwrap() error {
	return e.Err
}

// ErrorCode maps an error onto its taxonomy code.
func ErrorCode(err error) string {
	var sessionErr *SessionError
	var persistErr *PersistenceError
	var recordErr *InvalidRecordError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrAuthentication):
		return ErrCodeAuth
	case errors.Is(err, ErrMismatch):
		return ErrCodeMismatch
	case errors.Is(err, ErrAlreadyExists):
		return ErrCodeAlreadyExists
	case errors.Is(err, ErrEmptyStore):
		return ErrCodeEmptyStore
	case errors.Is(err, ErrNotSelectable):
		return ErrCodeNotSelectable
	case errors.As(err, &sessionErr):
		return ErrCodeSession
	case errors.As(err, &persistErr):
		return ErrCodePersistence
	case errors.As(err, &recordErr), errors.Is(err, ErrEmptyPassphrase):
		return ErrCodeInvalidInput
	default:
		return ErrCodeUnknown
	}
}

// UserMessage converts any error into the sentence shown to the user.
func UserMessage(err error) string {
	var sessionErr *SessionError
	var persistErr *PersistenceError
	var selectErr *NotSelectableError
	var recordErr *InvalidRecordError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "No connection store found. Run with --init to create one."
	case errors.Is(err, ErrAuthentication):
		return "Wrong passphrase or corrupted store file."
	case errors.Is(err, ErrMismatch):
		return "Passphrases do not match."
	case errors.Is(err, ErrAlreadyExists):
		return "A connection store already exists; refusing to overwrite it."
	case errors.Is(err, ErrEmptyStore):
		return "No connections available."
	case errors.As(err, &selectErr):
		return fmt.Sprintf("Connection %s is no longer in the store.", selectErr.Selector)
	case errors.Is(err, ErrNotSelectable):
		return "Selected connection is no longer in the store."
	case errors.Is(err, ErrEmptyPassphrase):
		return "Passphrase must not be empty."
	case errors.As(err, &recordErr):
		return fmt.Sprintf("Invalid connection: %v.", recordErr.Err)
	case errors.As(err, &sessionErr):
		if sessionErr.Err != nil {
			return fmt.Sprintf("Failed to connect to %s@%s: %v", sessionErr.Username, sessionErr.Host, sessionErr.Err)
		}
		return fmt.Sprintf("Session to %s@%s exited with status %d.", sessionErr.Username, sessionErr.Host, sessionErr.ExitStatus)
	case errors.As(err, &persistErr):
		return fmt.Sprintf("Could not %s %s: %v", persistErr.Op, persistErr.Path, persistErr.Err)
	default:
		return err.Error()
	}
}
