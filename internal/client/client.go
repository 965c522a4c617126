package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/TheMichaelB/lssh/internal/codec"
	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/crypto"
	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
	"github.com/TheMichaelB/lssh/internal/prompt"
	"github.com/TheMichaelB/lssh/internal/session"
	"github.com/TheMichaelB/lssh/internal/storage"
	"github.com/TheMichaelB/lssh/internal/vault"
)

// Prompt texts.
const (
	PromptPassphrase  = "Store passphrase: "
	PromptNewPass     = "New store passphrase: "
	PromptConfirmPass = "Confirm passphrase: "
	PromptLabel       = "Enter a label for the connection: "
	PromptUsername    = "Enter the username: "
	PromptPassword    = "Enter the password: "
	PromptHost        = "Enter the host (IP address or domain name): "
	PromptConnect     = "Select the connection to use"
	PromptDelete      = "Select the connection to delete"
)

// DefaultLegacyFile is where the plaintext predecessor kept connections.
const DefaultLegacyFile = "~/.ssh_connections"

// Client wires the store, session flow and prompts behind the command modes.
type Client struct {
	Store   *vault.Store
	Session *session.Flow

	config  *config.Config
	logger  *events.Logger
	prompts prompt.Provider
}

// New creates a client. A nil launcher selects the one named in config.
func New(cfg *config.Config, logger *events.Logger, prompts prompt.Provider, launcher session.Launcher) (*Client, error) {
	if launcher == nil {
		var err error
		launcher, err = session.NewLauncher(&cfg.Session, logger)
		if err != nil {
			return nil, err
		}
	}

	// Create blob store
	blobStore := storage.NewLocalStore(logger)
	blobStore.SetMaxFileSize(cfg.Store.MaxSize)

	// Create crypto provider
	cryptoProvider := crypto.NewProvider()

	store := vault.New(&cfg.Store, cfg.Crypto, blobStore, cryptoProvider, logger)
	flow := session.NewFlow(launcher, cfg.Session.Port, logger)

	return &Client{
		Store:   store,
		Session: flow,
		config:  cfg,
		logger:  logger.WithField("component", "client"),
		prompts: prompts,
	}, nil
}

// Connect asks for the passphrase, lets the user pick a connection and
// runs the session. The remote exit status is returned.
func (c *Client) Connect(ctx context.Context) (int, error) {
	passphrase, err := c.prompts.Secret(ctx, PromptPassphrase)
	if err != nil {
		return 0, err
	}

	records, err := c.Store.Load(passphrase)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, models.ErrEmptyStore
	}

	selector, err := c.choose(ctx, PromptConnect, records)
	if err != nil {
		return 0, err
	}

	c.log(ctx).WithField("selection", selector.String()).Debug("Connection selected")

	return c.Session.BeginSession(ctx, records, selector)
}

// AddConnection asks for a new record and appends it to the store.
func (c *Client) AddConnection(ctx context.Context) (models.ConnectionRecord, error) {
	var record models.ConnectionRecord

	fields := []struct {
		message string
		target  *string
		secret  bool
	}{
		{PromptLabel, &record.Label, false},
		{PromptUsername, &record.Username, false},
		{PromptPassword, &record.Password, true},
		{PromptHost, &record.Host, false},
	}

	for _, f := range fields {
		var value string
		var err error
		if f.secret {
			value, err = c.prompts.Secret(ctx, f.message)
		} else {
			value, err = c.prompts.Text(ctx, f.message)
			value = strings.TrimSpace(value)
		}
		if err != nil {
			return models.ConnectionRecord{}, err
		}
		*f.target = value
	}

	if err := record.Validate(); err != nil {
		return models.ConnectionRecord{}, &models.InvalidRecordError{Err: err}
	}

	passphrase, err := c.prompts.Secret(ctx, PromptPassphrase)
	if err != nil {
		return models.ConnectionRecord{}, err
	}

	if err := c.Store.Add(passphrase, record); err != nil {
		return models.ConnectionRecord{}, err
	}

	c.log(ctx).WithFields(map[string]interface{}{
		"label":    record.Label,
		"username": record.Username,
	}).Info("Connection saved")

	return record, nil
}

// DeleteConnection lets the user pick a record and removes it.
func (c *Client) DeleteConnection(ctx context.Context) (models.ConnectionRecord, error) {
	passphrase, err := c.prompts.Secret(ctx, PromptPassphrase)
	if err != nil {
		return models.ConnectionRecord{}, err
	}

	records, err := c.Store.List(passphrase)
	if err != nil {
		return models.ConnectionRecord{}, err
	}
	if len(records) == 0 {
		return models.ConnectionRecord{}, models.ErrEmptyStore
	}

	selector, err := c.choose(ctx, PromptDelete, records)
	if err != nil {
		return models.ConnectionRecord{}, err
	}

	removed, err := c.Store.Delete(passphrase, selector)
	if err != nil {
		return models.ConnectionRecord{}, err
	}

	c.log(ctx).WithField("selection", selector.String()).Info("Connection removed")

	return removed, nil
}

// InitStore creates an empty store after a confirmed passphrase.
func (c *Client) InitStore(ctx context.Context) (string, error) {
	exists, err := c.Store.Exists()
	if err != nil {
		return "", err
	}
	if exists {
		return "", models.ErrAlreadyExists
	}

	passphrase, err := c.prompts.Secret(ctx, PromptNewPass)
	if err != nil {
		return "", err
	}
	confirm, err := c.prompts.Secret(ctx, PromptConfirmPass)
	if err != nil {
		return "", err
	}

	if err := c.Store.Initialize(passphrase, confirm); err != nil {
		return "", err
	}

	c.log(ctx).WithField("path", c.Store.Path()).Info("Store created")

	return c.Store.Path(), nil
}

// ImportResult summarises a legacy import.
type ImportResult struct {
	Source   string
	Imported int
	Skipped  []codec.LineError
}

// ImportLegacy moves the records of a plaintext connections file into the
// store. An empty path means DefaultLegacyFile. The plaintext file is left
// in place.
func (c *Client) ImportLegacy(ctx context.Context, path string) (ImportResult, error) {
	if path == "" {
		path = DefaultLegacyFile
	}
	path, err := config.ExpandHome(path)
	if err != nil {
		return ImportResult{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ImportResult{}, fmt.Errorf("legacy file %s: %w", path, err)
		}
		return ImportResult{}, &models.PersistenceError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	passphrase, err := c.prompts.Secret(ctx, PromptPassphrase)
	if err != nil {
		return ImportResult{}, err
	}

	imported, skipped, err := c.Store.Import(passphrase, f)
	if err != nil {
		return ImportResult{}, err
	}

	logger := c.log(ctx).WithFields(map[string]interface{}{
		"source":   path,
		"imported": imported,
		"skipped":  len(skipped),
	})
	for _, s := range skipped {
		logger.WithError(s).Warn("Skipped legacy entry")
	}
	logger.Info("Legacy import finished")

	return ImportResult{Source: path, Imported: imported, Skipped: skipped}, nil
}

// choose offers records as "label (username)" and maps the answer back.
func (c *Client) choose(ctx context.Context, message string, records []models.ConnectionRecord) (models.Selector, error) {
	choices, lookup := models.Choices(records)

	choice, err := c.prompts.Select(ctx, message, choices)
	if err != nil {
		return models.Selector{}, err
	}

	selector, ok := lookup[choice]
	if !ok {
		return models.Selector{}, fmt.Errorf("%w: %q", models.ErrNotSelectable, choice)
	}
	return selector, nil
}

func (c *Client) log(ctx context.Context) *events.Logger {
	if cmd := events.GetCommand(ctx); cmd != "" {
		return c.logger.WithField("command", cmd)
	}
	return c.logger
}
