//go:build !windows

package session

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/TheMichaelB/lssh/internal/events"
)

// watchWindowSize forwards local terminal resizes to the remote PTY.
func watchWindowSize(ctx context.Context, fd int, sess *ssh.Session, logger *events.Logger) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-sigs:
				width, height, err := term.GetSize(fd)
				if err != nil {
					continue
				}
				if err := sess.WindowChange(height, width); err != nil {
					logger.WithError(err).Debug("Window change failed")
				}
			}
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(stop)
	}
}
