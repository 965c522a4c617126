// Package session resolves a selected connection and hands its credentials
// to a launcher that runs the interactive SSH session.
package session

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
)

// Credentials are everything a launcher needs to open one session.
type Credentials struct {
	Username string
	Password string
	Host     string // ASCII hostname or IP literal, no port
	Port     int
}

// Address returns host:port, bracketing IPv6 literals.
func (c Credentials) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s", c.Username, c.Address())
}

// CredentialsFor converts a stored record. The record host may carry its
// own port; otherwise defaultPort is used.
func CredentialsFor(r models.ConnectionRecord, defaultPort int) (Credentials, error) {
	host, port, err := models.SplitHostPort(r.Host, defaultPort)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		Username: r.Username,
		Password: r.Password,
		Host:     host,
		Port:     port,
	}, nil
}

// Launcher runs one interactive session and reports the remote exit status.
type Launcher interface {
	Launch(ctx context.Context, creds Credentials) (int, error)
}

// Flow connects to a record chosen from a loaded store.
type Flow struct {
	launcher    Launcher
	defaultPort int
	logger      *events.Logger
}

// NewFlow creates a session flow.
func NewFlow(launcher Launcher, defaultPort int, logger *events.Logger) *Flow {
	if defaultPort <= 0 {
		defaultPort = 22
	}

	return &Flow{
		launcher:    launcher,
		defaultPort: defaultPort,
		logger:      logger.WithField("component", "session"),
	}
}

// BeginSession launches the first record matched by selector exactly once
// and returns the remote exit status.
func (f *Flow) BeginSession(ctx context.Context, records []models.ConnectionRecord, selector models.Selector) (int, error) {
	idx := models.FindRecord(records, selector)
	if idx < 0 {
		return 0, &models.NotSelectableError{Selector: selector}
	}
	record := records[idx]

	creds, err := CredentialsFor(record, f.defaultPort)
	if err != nil {
		return 0, &models.SessionError{Username: record.Username, Host: record.Host, Err: err}
	}

	logger := f.logger.WithFields(map[string]interface{}{
		"label":    record.Label,
		"username": creds.Username,
		"address":  creds.Address(),
	})
	logger.Info("Starting session")

	status, err := f.launcher.Launch(ctx, creds)
	if err != nil {
		logger.WithError(err).Error("Session failed")
		return status, &models.SessionError{
			Username:   record.Username,
			Host:       record.Host,
			ExitStatus: status,
			Err:        err,
		}
	}

	logger.WithField("exit_status", status).Info("Session ended")

	if status != 0 {
		return status, &models.SessionError{
			Username:   record.Username,
			Host:       record.Host,
			ExitStatus: status,
		}
	}

	return 0, nil
}
