package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/lssh/internal/client"
	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
	"github.com/TheMichaelB/lssh/internal/prompt"
	"github.com/TheMichaelB/lssh/internal/session"
)

// Exit codes besides a propagated remote status.
const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// Command modes.
const (
	modeConnect = "connect"
	modeAdd     = "add"
	modeDelete  = "delete"
	modeInit    = "init"
	modeImport  = "import"
)

// app holds flag values and the dependencies a test may replace.
type app struct {
	configFile string
	jsonOutput bool

	addMode    bool
	deleteMode bool
	initMode   bool
	importFile string

	prompts  prompt.Provider
	launcher session.Launcher
}

// handledError has already been reported to the user.
type handledError struct {
	code int
	err  error
}

func (e *handledError) Error() string {
	return e.err.Error()
}

func (e *handledError) Unwrap() error {
	return e.err
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lssh",
		Short: "Connect to saved SSH hosts from an encrypted store",
		Long: `lssh keeps SSH connection profiles (label, username, password, host)
in a passphrase-encrypted file and connects to the one you pick.

Without flags lssh asks for the store passphrase, lists the saved
connections and opens an SSH session to the selection.`,
		Example: `  lssh --init
  lssh --add
  lssh
  lssh --delete
  lssh --import ~/.ssh_connections`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.run,
	}

	cmd.Flags().BoolVar(&a.addMode, "add", false,
		"Add a connection to the store")
	cmd.Flags().BoolVar(&a.deleteMode, "delete", false,
		"Delete a connection from the store")
	cmd.Flags().BoolVar(&a.initMode, "init", false,
		"Create a new empty store")
	cmd.Flags().StringVar(&a.importFile, "import", "",
		"Import a plaintext connections file (one JSON object per line)")
	cmd.MarkFlagsMutuallyExclusive("add", "delete", "init", "import")

	cmd.PersistentFlags().StringVar(&a.configFile, "config", "",
		"Config file (default: ~/.config/lssh/config.yaml)")
	cmd.PersistentFlags().BoolVar(&a.jsonOutput, "json", false,
		"Print results as JSON")

	return cmd
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string) int {
	return executeApp(ctx, &app{}, args)
}

func executeApp(ctx context.Context, a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	var handled *handledError
	if errors.As(err, &handled) {
		return handled.code
	}

	printError("%v", err)
	fmt.Fprint(stderr, cmd.UsageString())
	return exitUsage
}

func (a *app) mode() string {
	switch {
	case a.addMode:
		return modeAdd
	case a.deleteMode:
		return modeDelete
	case a.initMode:
		return modeInit
	case a.importFile != "":
		return modeImport
	default:
		return modeConnect
	}
}

func (a *app) run(cmd *cobra.Command, _ []string) error {
	mode := a.mode()

	cfg, err := config.NewLoader(a.configFile).Load()
	if err != nil {
		return a.fail(mode, fmt.Errorf("load config: %w", err))
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return a.fail(mode, err)
	}

	logger, err := events.NewLogger(&cfg.Log)
	if err != nil {
		return a.fail(mode, err)
	}
	events.SetDefault(logger)

	ctx := events.WithCommand(events.WithLogger(cmd.Context(), logger), mode)

	prompts := a.prompts
	if prompts == nil {
		prompts = prompt.NewTerminal()
	}

	c, err := client.New(cfg, logger, prompts, a.launcher)
	if err != nil {
		return a.fail(mode, err)
	}

	switch mode {
	case modeAdd:
		return a.runAdd(ctx, c)
	case modeDelete:
		return a.runDelete(ctx, c)
	case modeInit:
		return a.runInit(ctx, c)
	case modeImport:
		return a.runImport(ctx, c)
	default:
		return a.runConnect(ctx, c)
	}
}

func (a *app) runConnect(ctx context.Context, c *client.Client) error {
	status, err := c.Connect(ctx)
	if err == nil {
		return nil
	}

	// A remote shell that exits non-zero is not an lssh failure.
	var sessionErr *models.SessionError
	if errors.As(err, &sessionErr) && sessionErr.Err == nil {
		return &handledError{code: status, err: err}
	}

	return a.fail(modeConnect, err)
}

func (a *app) runAdd(ctx context.Context, c *client.Client) error {
	record, err := c.AddConnection(ctx)
	if err != nil {
		return a.fail(modeAdd, err)
	}

	if a.jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"label":    record.Label,
			"username": record.Username,
			"host":     record.Host,
		})
	} else {
		printSuccess("Connection %s saved.", models.ChoiceFor(record))
	}
	return nil
}

func (a *app) runDelete(ctx context.Context, c *client.Client) error {
	removed, err := c.DeleteConnection(ctx)
	if err != nil {
		return a.fail(modeDelete, err)
	}

	if a.jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"label":    removed.Label,
			"username": removed.Username,
			"host":     removed.Host,
		})
	} else {
		printSuccess("Connection %s deleted.", models.ChoiceFor(removed))
	}
	return nil
}

func (a *app) runInit(ctx context.Context, c *client.Client) error {
	path, err := c.InitStore(ctx)
	if err != nil {
		return a.fail(modeInit, err)
	}

	if a.jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"path":    path,
		})
	} else {
		printSuccess("Created connection store at %s", path)
	}
	return nil
}

func (a *app) runImport(ctx context.Context, c *client.Client) error {
	result, err := c.ImportLegacy(ctx, a.importFile)
	if err != nil {
		return a.fail(modeImport, err)
	}

	skipped := make([]string, 0, len(result.Skipped))
	for _, s := range result.Skipped {
		skipped = append(skipped, s.Error())
	}

	if a.jsonOutput {
		printJSON(map[string]interface{}{
			"success":  true,
			"source":   result.Source,
			"imported": result.Imported,
			"skipped":  skipped,
		})
		return nil
	}

	printSuccess("Imported %d connection(s) from %s", result.Imported, result.Source)
	for _, s := range skipped {
		printWarning("  skipped %s", s)
	}
	if result.Imported > 0 {
		printInfo("The plaintext file still exists; remove it once you have checked the import.")
	}
	return nil
}

// fail reports err once and marks it handled.
func (a *app) fail(mode string, err error) error {
	code := exitFailure
	message := models.UserMessage(err)
	if errors.Is(err, prompt.ErrAborted) {
		message = "Aborted."
	}
	if errors.Is(err, context.Canceled) {
		code = exitInterrupted
	}

	if a.jsonOutput {
		printJSON(map[string]interface{}{
			"success": false,
			"mode":    mode,
			"code":    models.ErrorCode(err),
			"error":   message,
		})
	} else {
		printError("%s", message)
	}

	return &handledError{code: code, err: err}
}
