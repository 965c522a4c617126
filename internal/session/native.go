package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"

	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
)

// ErrHostKeyUnknown is returned when a host is missing from known_hosts
// and new keys may not be accepted.
var ErrHostKeyUnknown = errors.New("host key not in known_hosts")

// NativeLauncher opens the session with the built-in SSH client.
type NativeLauncher struct {
	cfg    *config.SessionConfig
	logger *events.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	knownHostsMu sync.Mutex
}

// NewNativeLauncher creates a launcher attached to the process's stdio.
func NewNativeLauncher(cfg *config.SessionConfig, logger *events.Logger) *NativeLauncher {
	return &NativeLauncher{
		cfg:    cfg,
		logger: logger.WithField("component", "native_launcher"),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetIO replaces the session streams.
func (l *NativeLauncher) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	l.stdin, l.stdout, l.stderr = stdin, stdout, stderr
}

// Launch dials the host, authenticates with the password and runs an
// interactive shell until the remote side exits.
func (l *NativeLauncher) Launch(ctx context.Context, creds Credentials) (int, error) {
	hostKeyCallback, err := l.hostKeyCallback()
	if err != nil {
		return 0, err
	}

	var hostKeyErr error
	clientConfig := &ssh.ClientConfig{
		User: creds.Username,
		Auth: authMethods(creds.Password),
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			hostKeyErr = hostKeyCallback(hostname, remote, key)
			return hostKeyErr
		},
		Timeout: l.cfg.DialTimeout,
	}

	addr := creds.Address()
	logger := l.logger.WithField("address", addr)
	logger.Debug("Dialing")

	dialer := net.Dialer{Timeout: l.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return 0, fmt.Errorf("dial %s: %w", addr, err)
	}

	if l.cfg.DialTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(l.cfg.DialTimeout))
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		_ = conn.Close()
		if hostKeyErr != nil {
			return 0, fmt.Errorf("verify host key of %s: %w", addr, hostKeyErr)
		}
		return 0, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	// Closing the client unblocks Wait when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = client.Close()
		case <-done:
		}
	}()

	sess, err := client.NewSession()
	if err != nil {
		return 0, fmt.Errorf("open session: %w", err)
	}
	defer sess.Close()

	sess.Stdin = l.stdin
	sess.Stdout = l.stdout
	sess.Stderr = l.stderr

	restore, err := l.attachTerminal(ctx, sess)
	if err != nil {
		return 0, err
	}
	defer restore()

	if err := sess.Shell(); err != nil {
		return 0, fmt.Errorf("start shell: %w", err)
	}

	logger.Debug("Shell started")

	return exitStatus(ctx, sess.Wait())
}

// attachTerminal requests a PTY sized like the local terminal and puts the
// local terminal into raw mode. It is a no-op when stdin is not a terminal.
func (l *NativeLauncher) attachTerminal(ctx context.Context, sess *ssh.Session) (func(), error) {
	f, ok := l.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}, nil
	}
	fd := int(f.Fd())

	width, height, err := term.GetSize(fd)
	if err != nil {
		width, height = 80, 24
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}

	termName := l.cfg.Term
	if termName == "" {
		termName = os.Getenv("TERM")
	}
	if termName == "" {
		termName = "xterm-256color"
	}

	if err := sess.RequestPty(termName, height, width, modes); err != nil {
		return nil, fmt.Errorf("request pty: %w", err)
	}

	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("set raw terminal: %w", err)
	}

	stopResize := watchWindowSize(ctx, fd, sess, l.logger)

	return func() {
		stopResize()
		_ = term.Restore(fd, state)
	}, nil
}

// hostKeyCallback verifies host keys against the known_hosts file. Unknown
// hosts are recorded when AcceptNewHostKeys is set; changed keys always fail.
func (l *NativeLauncher) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if l.cfg.InsecureIgnoreHostKey {
		l.logger.Warn("Host key verification disabled")
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := l.cfg.KnownHostsFile
	if path == "" {
		return nil, errors.New("session.known_hosts_file is not set")
	}

	if l.cfg.AcceptNewHostKeys {
		if err := ensureFile(path); err != nil {
			return nil, err
		}
	}

	check, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("load known hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)

		var keyErr *knownhosts.KeyError
		if !errors.As(err, &keyErr) || len(keyErr.Want) > 0 {
			return err
		}

		if !l.cfg.AcceptNewHostKeys {
			return fmt.Errorf("%w: %s", ErrHostKeyUnknown, hostname)
		}

		if err := l.appendKnownHost(path, hostname, key); err != nil {
			return err
		}

		l.logger.WithFields(map[string]interface{}{
			"host":        hostname,
			"fingerprint": ssh.FingerprintSHA256(key),
		}).Warn("Permanently added host key to known hosts")

		return nil
	}, nil
}

func (l *NativeLauncher) appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	l.knownHostsMu.Lock()
	defer l.knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open known hosts: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("write known hosts: %w", err)
	}
	return nil
}

// authMethods offers the stored password both as plain password auth and
// as the answer to keyboard-interactive password prompts.
func authMethods(password string) []ssh.AuthMethod {
	return []ssh.AuthMethod{
		ssh.Password(password),
		ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range answers {
				answers[i] = password
			}
			return answers, nil
		}),
	}
}

// exitStatus converts the result of Session.Wait.
func exitStatus(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 255, ctxErr
	}

	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) {
		return 255, fmt.Errorf("remote closed without exit status: %w", err)
	}

	return 255, fmt.Errorf("session: %w", err)
}

func ensureFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create known hosts directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return fmt.Errorf("create known hosts: %w", err)
	}
	return f.Close()
}
