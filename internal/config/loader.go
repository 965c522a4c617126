package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. LSSH_STORE_PATH.
const EnvPrefix = "LSSH"

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	v          *viper.Viper
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations and tolerates a missing file.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		v:          viper.New(),
	}
}

// Load reads configuration from defaults, file and environment, in that
// order of increasing precedence.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setDefaults(cfg)

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		l.v.SetConfigName("config")
		for _, dir := range l.defaultDirs() {
			l.v.AddConfigPath(dir)
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("expand paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ConfigFileUsed returns the file the last Load read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// setDefaults registers every key so environment overrides apply to
// values that are absent from the config file.
func (l *Loader) setDefaults(cfg *Config) {
	defaults := map[string]interface{}{
		"store.path":                       cfg.Store.Path,
		"store.file_mode":                  cfg.Store.FileMode,
		"store.max_size":                   cfg.Store.MaxSize,
		"crypto.kdf":                       cfg.Crypto.KDF,
		"crypto.iterations":                cfg.Crypto.Iterations,
		"crypto.salt_size":                 cfg.Crypto.SaltSize,
		"crypto.salt":                      cfg.Crypto.Salt,
		"session.launcher":                 cfg.Session.Launcher,
		"session.port":                     cfg.Session.Port,
		"session.dial_timeout":             cfg.Session.DialTimeout,
		"session.known_hosts_file":         cfg.Session.KnownHostsFile,
		"session.accept_new_host_keys":     cfg.Session.AcceptNewHostKeys,
		"session.insecure_ignore_host_key": cfg.Session.InsecureIgnoreHostKey,
		"session.sshpass_binary":           cfg.Session.SSHPassBinary,
		"session.ssh_binary":               cfg.Session.SSHBinary,
		"session.term":                     cfg.Session.Term,
		"log.level":                        cfg.Log.Level,
		"log.format":                       cfg.Log.Format,
		"log.file":                         cfg.Log.File,
		"log.color":                        cfg.Log.Color,
	}

	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}
}

// defaultDirs returns default config directories.
func (l *Loader) defaultDirs() []string {
	var dirs []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "lssh"))
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(homeDir, ".config", "lssh"),
			filepath.Join(homeDir, ".lssh"),
		)
	}

	return dirs
}
