package session

import (
	"fmt"

	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
)

// NewLauncher returns the launcher selected by cfg.Launcher.
func NewLauncher(cfg *config.SessionConfig, logger *events.Logger) (Launcher, error) {
	switch cfg.Launcher {
	case config.LauncherNative, "":
		return NewNativeLauncher(cfg, logger), nil
	case config.LauncherSSHPass:
		return NewExecLauncher(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown launcher %q", cfg.Launcher)
	}
}
