package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TheMichaelB/lssh/internal/crypto"
)

// Config holds all application configuration.
type Config struct {
	// Encrypted connection store
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Key derivation
	Crypto CryptoConfig `json:"crypto" mapstructure:"crypto"`

	// SSH session launching
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Logging
	Log LogConfig `json:"log" mapstructure:"log"`
}

// StoreConfig locates the encrypted store file.
type StoreConfig struct {
	Path     string      `json:"path" mapstructure:"path"`           // Store file (~ expanded)
	FileMode os.FileMode `json:"file_mode" mapstructure:"file_mode"` // Mode for the store file
	MaxSize  int64       `json:"max_size" mapstructure:"max_size"`   // Refuse to read/write larger stores
}

// CryptoConfig selects the key derivation function for new stores.
// Existing stores always use the parameters recorded in their header.
type CryptoConfig struct {
	KDF        string `json:"kdf" mapstructure:"kdf"`               // pbkdf2, scrypt
	Iterations int    `json:"iterations" mapstructure:"iterations"` // pbkdf2 rounds or scrypt N; 0 picks the KDF default
	SaltSize   int    `json:"salt_size" mapstructure:"salt_size"`   // Random salt length in bytes
	Salt       string `json:"salt,omitempty" mapstructure:"salt"`   // Optional pinned salt (base64)
}

// Cost returns the configured iteration count, or the default for the KDF
// when none is set. For scrypt this is N.
func (c CryptoConfig) Cost() int {
	if c.Iterations > 0 {
		return c.Iterations
	}
	kdf, err := crypto.ParseKDF(c.KDF)
	if err != nil {
		return crypto.DefaultIterations
	}
	return crypto.DefaultCost(kdf)
}

// SessionConfig for the SSH session launcher.
type SessionConfig struct {
	Launcher              string        `json:"launcher" mapstructure:"launcher"` // native, sshpass
	Port                  int           `json:"port" mapstructure:"port"`
	DialTimeout           time.Duration `json:"dial_timeout" mapstructure:"dial_timeout"`
	KnownHostsFile        string        `json:"known_hosts_file" mapstructure:"known_hosts_file"`
	AcceptNewHostKeys     bool          `json:"accept_new_host_keys" mapstructure:"accept_new_host_keys"`
	InsecureIgnoreHostKey bool          `json:"insecure_ignore_host_key" mapstructure:"insecure_ignore_host_key"`
	SSHPassBinary         string        `json:"sshpass_binary" mapstructure:"sshpass_binary"`
	SSHBinary             string        `json:"ssh_binary" mapstructure:"ssh_binary"`
	Term                  string        `json:"term" mapstructure:"term"` // TERM sent with the pty request
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // Log file path (empty = stderr)
	Color  bool   `json:"color" mapstructure:"color"`   // Enable colored output
}

// Supported key derivation functions.
const (
	KDFPBKDF2 = "pbkdf2"
	KDFScrypt = "scrypt"
)

// Supported session launchers.
const (
	LauncherNative  = "native"
	LauncherSSHPass = "sshpass"
)

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:     filepath.Join("~", ".lssh", "connections.vault"),
			FileMode: 0600,
			MaxSize:  10 * 1024 * 1024, // 10MB
		},
		Crypto: CryptoConfig{
			KDF:        KDFPBKDF2,
			Iterations: 0,
			SaltSize:   32,
		},
		Session: SessionConfig{
			Launcher:          LauncherNative,
			Port:              22,
			DialTimeout:       15 * time.Second,
			KnownHostsFile:    filepath.Join("~", ".ssh", "known_hosts"),
			AcceptNewHostKeys: true,
			SSHPassBinary:     "sshpass",
			SSHBinary:         "ssh",
			Term:              "xterm-256color",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
			File:   "",
			Color:  true,
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}

	if c.Store.MaxSize <= 0 {
		return errors.New("store.max_size must be positive")
	}

	if c.Store.FileMode&0077 != 0 {
		return fmt.Errorf("store.file_mode %o must not grant group or other access", c.Store.FileMode)
	}

	switch c.Crypto.KDF {
	case KDFPBKDF2, KDFScrypt:
	default:
		return fmt.Errorf("invalid crypto.kdf: %s", c.Crypto.KDF)
	}

	cost := c.Crypto.Cost()
	switch {
	case c.Crypto.Iterations < 0:
		return errors.New("crypto.iterations must not be negative")
	case c.Crypto.KDF == KDFScrypt && !crypto.ValidScryptN(cost):
		return fmt.Errorf("crypto.iterations for scrypt must be a power of two between %d and %d, got %d",
			crypto.MinScryptN, crypto.MaxScryptN, cost)
	case c.Crypto.KDF == KDFPBKDF2 && (cost < crypto.MinIterations || cost > crypto.MaxIterations):
		return fmt.Errorf("crypto.iterations for pbkdf2 must be between %d and %d, got %d",
			crypto.MinIterations, crypto.MaxIterations, cost)
	}

	if c.Crypto.SaltSize < 16 || c.Crypto.SaltSize > 255 {
		return fmt.Errorf("crypto.salt_size must be between 16 and 255, got %d", c.Crypto.SaltSize)
	}

	if c.Crypto.Salt != "" {
		salt, err := base64.StdEncoding.DecodeString(c.Crypto.Salt)
		if err != nil {
			return fmt.Errorf("crypto.salt: %w", err)
		}
		if len(salt) < 16 || len(salt) > 255 {
			return fmt.Errorf("crypto.salt must decode to 16-255 bytes, got %d", len(salt))
		}
	}

	switch c.Session.Launcher {
	case LauncherNative, LauncherSSHPass:
	default:
		return fmt.Errorf("invalid session.launcher: %s", c.Session.Launcher)
	}

	if c.Session.Port <= 0 || c.Session.Port > 65535 {
		return fmt.Errorf("invalid session.port: %d", c.Session.Port)
	}

	if c.Session.DialTimeout <= 0 {
		return errors.New("session.dial_timeout must be positive")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// ExpandPaths replaces a leading ~ in every path setting with the user's
// home directory.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Store.Path, &c.Session.KnownHostsFile, &c.Log.File} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Store.Path)}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// ExpandHome resolves "~" and "~/..." against the current user's home.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}
