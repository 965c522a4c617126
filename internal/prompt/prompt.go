// Package prompt asks the user for input on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	// ErrAborted is returned when input ends or the context is cancelled
	// before an answer is given.
	ErrAborted = errors.New("input aborted")
	// ErrNoChoices is returned by Select when there is nothing to pick.
	ErrNoChoices = errors.New("nothing to choose from")
)

// Provider asks questions and returns the answers.
type Provider interface {
	// Text reads one line of visible input.
	Text(ctx context.Context, message string) (string, error)
	// Secret reads one line without echo.
	Secret(ctx context.Context, message string) (string, error)
	// Select returns one of choices.
	Select(ctx context.Context, message string, choices []string) (string, error)
}

type readResult struct {
	value string
	err   error
}

// Terminal implements Provider on a reader and writer, normally the
// process's stdin and stderr.
type Terminal struct {
	in        *bufio.Reader
	fd        int
	out       io.Writer
	highlight *color.Color

	// pending holds a read abandoned by a cancelled prompt; the next
	// prompt collects it instead of starting a concurrent read.
	pending chan readResult
}

// NewTerminal creates a prompt reading stdin and writing to stderr, so
// stdout stays free for command output.
func NewTerminal() *Terminal {
	t := NewTerminalWithIO(os.Stdin, os.Stderr)
	t.fd = int(os.Stdin.Fd())
	return t
}

// NewTerminalWithIO creates a prompt on arbitrary streams. Secrets are
// read as plain lines since in is not a terminal.
func NewTerminalWithIO(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:        bufio.NewReader(in),
		fd:        -1,
		out:       out,
		highlight: color.New(color.FgBlue),
	}
}

// SetColor forces highlighting on or off.
func (t *Terminal) SetColor(enabled bool) {
	if enabled {
		t.highlight.EnableColor()
	} else {
		t.highlight.DisableColor()
	}
}

// Text reads one line of visible input.
func (t *Terminal) Text(ctx context.Context, message string) (string, error) {
	fmt.Fprint(t.out, message)
	return t.await(ctx, t.readLine)
}

// Secret reads one line with echo disabled when on a terminal. On
// cancellation the terminal state is restored before returning.
func (t *Terminal) Secret(ctx context.Context, message string) (string, error) {
	fmt.Fprint(t.out, message)

	if t.fd < 0 || !term.IsTerminal(t.fd) {
		return t.await(ctx, t.readLine)
	}

	state, err := term.GetState(t.fd)
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}

	secret, err := t.await(ctx, t.readPassword)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_ = term.Restore(t.fd, state)
	}
	fmt.Fprintln(t.out) // New line after password
	return secret, err
}

// Select shows a numbered list and asks until a valid number or an exact
// choice is entered.
func (t *Terminal) Select(ctx context.Context, message string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", ErrNoChoices
	}

	fmt.Fprintln(t.out, message)
	for i, choice := range choices {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, t.render(choice))
	}

	for {
		answer, err := t.Text(ctx, fmt.Sprintf("Choice [1-%d]: ", len(choices)))
		if err != nil {
			return "", err
		}

		if choice, ok := resolve(answer, choices); ok {
			return choice, nil
		}

		fmt.Fprintf(t.out, "Please enter a number between 1 and %d.\n", len(choices))
	}
}

// render highlights the "(username)" suffix of a choice.
func (t *Terminal) render(choice string) string {
	idx := strings.LastIndex(choice, " (")
	if idx < 0 || !strings.HasSuffix(choice, ")") {
		return choice
	}
	return choice[:idx+2] + t.highlight.Sprint(choice[idx+2:len(choice)-1]) + ")"
}

// await runs read in the background and returns its result, or ErrAborted
// once ctx is done.
func (t *Terminal) await(ctx context.Context, read func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAborted, err)
	}

	if t.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			value, err := read()
			ch <- readResult{value: value, err: err}
		}()
		t.pending = ch
	}

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrAborted, ctx.Err())
	case r := <-t.pending:
		t.pending = nil
		return r.value, r.err
	}
}

func (t *Terminal) readPassword() (string, error) {
	secret, err := term.ReadPassword(t.fd)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("read secret: %w", err)
	}
	return string(secret), nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrAborted
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func resolve(answer string, choices []string) (string, bool) {
	answer = strings.TrimSpace(answer)

	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(choices) {
			return choices[n-1], true
		}
		return "", false
	}

	for _, c := range choices {
		if c == answer {
			return c, true
		}
	}
	return "", false
}
