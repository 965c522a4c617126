package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
)

// ErrSSHPass marks a failure reported by sshpass itself rather than by the
// remote shell.
var ErrSSHPass = errors.New("sshpass failed")

// sshpassFailures maps the exit codes sshpass uses for its own errors.
// Code 6 is an unknown host key.
var sshpassFailures = map[int]string{
	1: "invalid command line arguments",
	2: "conflicting arguments",
	3: "runtime error",
	4: "unrecognized response from ssh",
	5: "invalid or incorrect password",
}

// ExecLauncher runs the system ssh client through sshpass. The password is
// handed over in the SSHPASS environment variable and never appears in the
// process arguments.
type ExecLauncher struct {
	cfg    *config.SessionConfig
	logger *events.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewExecLauncher creates a launcher attached to the process's stdio.
func NewExecLauncher(cfg *config.SessionConfig, logger *events.Logger) *ExecLauncher {
	return &ExecLauncher{
		cfg:    cfg,
		logger: logger.WithField("component", "sshpass_launcher"),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// SetIO replaces the streams attached to the child process.
func (l *ExecLauncher) SetIO(stdin io.Reader, stdout, stderr io.Writer) {
	l.stdin, l.stdout, l.stderr = stdin, stdout, stderr
}

// Args returns the sshpass argument list for creds.
func (l *ExecLauncher) Args(creds Credentials) []string {
	args := []string{"-e", l.sshBinary(), "-p", strconv.Itoa(creds.Port)}

	switch {
	case l.cfg.InsecureIgnoreHostKey:
		args = append(args, "-o", "StrictHostKeyChecking=no", "-o", "UserKnownHostsFile=/dev/null")
	case l.cfg.AcceptNewHostKeys:
		args = append(args, "-o", "StrictHostKeyChecking=accept-new")
	default:
		args = append(args, "-o", "StrictHostKeyChecking=yes")
	}

	if l.cfg.KnownHostsFile != "" && !l.cfg.InsecureIgnoreHostKey {
		args = append(args, "-o", "UserKnownHostsFile="+l.cfg.KnownHostsFile)
	}

	return append(args, "-l", creds.Username, creds.Host)
}

// Launch runs the session and returns the ssh exit status.
func (l *ExecLauncher) Launch(ctx context.Context, creds Credentials) (int, error) {
	binary := l.cfg.SSHPassBinary
	if binary == "" {
		binary = "sshpass"
	}

	path, err := exec.LookPath(binary)
	if err != nil {
		return 0, fmt.Errorf("find %s: %w", binary, err)
	}

	cmd := exec.CommandContext(ctx, path, l.Args(creds)...)
	cmd.Env = append(os.Environ(), "SSHPASS="+creds.Password)
	cmd.Stdin = l.stdin
	cmd.Stdout = l.stdout
	cmd.Stderr = l.stderr

	l.logger.WithFields(map[string]interface{}{
		"binary":  path,
		"address": creds.Address(),
	}).Debug("Executing ssh")

	err = cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == 6 {
			return code, fmt.Errorf("%s: %w", binary, ErrHostKeyUnknown)
		}
		if reason, ok := sshpassFailures[code]; ok {
			return code, fmt.Errorf("%w (%s): %s", ErrSSHPass, binary, reason)
		}
		if code >= 0 {
			return code, nil
		}
		return 255, fmt.Errorf("%s terminated: %w", binary, err)
	}
	if err != nil {
		return 0, fmt.Errorf("run %s: %w", binary, err)
	}

	return 0, nil
}

func (l *ExecLauncher) sshBinary() string {
	if l.cfg.SSHBinary == "" {
		return "ssh"
	}
	return l.cfg.SSHBinary
}
