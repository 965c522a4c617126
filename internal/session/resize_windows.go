//go:build windows

package session

import (
	"context"

	"golang.org/x/crypto/ssh"

	"github.com/TheMichaelB/lssh/internal/events"
)

// watchWindowSize is a no-op: Windows consoles have no SIGWINCH.
func watchWindowSize(_ context.Context, _ int, _ *ssh.Session, _ *events.Logger) func() {
	return func() {}
}
