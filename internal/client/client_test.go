package client_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/lssh/internal/client"
	"github.com/TheMichaelB/lssh/internal/config"
	"github.com/TheMichaelB/lssh/internal/events"
	"github.com/TheMichaelB/lssh/internal/models"
	"github.com/TheMichaelB/lssh/internal/prompt"
	"github.com/TheMichaelB/lssh/internal/session"
	"github.com/TheMichaelB/lssh/test/testutil"
)

const pw = testutil.TestPassphrase

type fixture struct {
	cfg      *config.Config
	prompts  *testutil.ScriptedPrompter
	launcher *testutil.MockLauncher
	client   *client.Client
	logs     *testutil.LogOutput
}

func newFixture(t *testing.T, answers ...string) *fixture {
	t.Helper()

	cfg := testutil.TestConfig(t)
	logs := testutil.NewLogOutput()
	logger := events.NewTestLogger(events.DebugLevel, "json", logs)
	prompts := testutil.NewScriptedPrompter(answers...)
	launcher := testutil.NewMockLauncher()

	c, err := client.New(cfg, logger, prompts, launcher)
	require.NoError(t, err)

	return &fixture{cfg: cfg, prompts: prompts, launcher: launcher, client: c, logs: logs}
}

func (f *fixture) seed(t *testing.T, records ...models.ConnectionRecord) {
	t.Helper()
	require.NoError(t, f.client.Store.Initialize(pw, pw))
	for _, r := range records {
		require.NoError(t, f.client.Store.Add(pw, r))
	}
}

func TestNewSelectsConfiguredLauncher(t *testing.T) {
	cfg := testutil.TestConfig(t)
	cfg.Session.Launcher = "bogus"
	_, err := client.New(cfg, testutil.NewTestLogger(), testutil.NewScriptedPrompter(), nil)
	assert.Error(t, err)

	cfg.Session.Launcher = config.LauncherSSHPass
	c, err := client.New(cfg, testutil.NewTestLogger(), testutil.NewScriptedPrompter(), nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Store.Path, c.Store.Path())
}

func TestInitStore(t *testing.T) {
	t.Run("creates store", func(t *testing.T) {
		f := newFixture(t, pw, pw)

		path, err := f.client.InitStore(context.Background())
		require.NoError(t, err)
		assert.Equal(t, f.cfg.Store.Path, path)
		assert.Equal(t, []string{client.PromptNewPass, client.PromptConfirmPass}, f.prompts.Asked)

		records, err := f.client.Store.Load(pw)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("mismatch", func(t *testing.T) {
		f := newFixture(t, "pw", "pw2")

		_, err := f.client.InitStore(context.Background())
		assert.ErrorIs(t, err, models.ErrMismatch)
		testutil.AssertFileNotExists(t, f.cfg.Store.Path)
	})

	t.Run("existing store refused before prompting", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t)

		_, err := f.client.InitStore(context.Background())
		assert.ErrorIs(t, err, models.ErrAlreadyExists)
		assert.Empty(t, f.prompts.Asked)
	})
}

func TestAddConnection(t *testing.T) {
	t.Run("prompts in order and saves", func(t *testing.T) {
		f := newFixture(t, "db", "alice", "x", " 10.0.0.1 ", pw)
		f.seed(t)

		record, err := f.client.AddConnection(context.Background())
		require.NoError(t, err)
		assert.Equal(t, testutil.SampleRecord(), record)
		assert.Equal(t, []string{
			client.PromptLabel, client.PromptUsername, client.PromptPassword,
			client.PromptHost, client.PromptPassphrase,
		}, f.prompts.Asked)

		records, err := f.client.Store.Load(pw)
		require.NoError(t, err)
		assert.Equal(t, []models.ConnectionRecord{testutil.SampleRecord()}, records)
		assert.True(t, f.logs.HasMessage("Connection saved"))
		assert.NotContains(t, f.logs.String(), `"x"`)
	})

	t.Run("missing store is created", func(t *testing.T) {
		f := newFixture(t, "db", "alice", "x", "10.0.0.1", pw)

		_, err := f.client.AddConnection(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, f.cfg.Store.Path)
	})

	t.Run("invalid input stops before passphrase", func(t *testing.T) {
		f := newFixture(t, "db", "alice", "x", "")

		_, err := f.client.AddConnection(context.Background())
		assert.ErrorIs(t, err, models.ErrEmptyHost)
		assert.Equal(t, models.ErrCodeInvalidInput, models.ErrorCode(err))
		assert.NotContains(t, f.prompts.Asked, client.PromptPassphrase)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		f := newFixture(t, "db", "alice", "x", "10.0.0.1", "wrong")
		f.seed(t)
		before := testutil.ReadFile(t, f.cfg.Store.Path)

		_, err := f.client.AddConnection(context.Background())
		assert.ErrorIs(t, err, models.ErrAuthentication)
		assert.Equal(t, before, testutil.ReadFile(t, f.cfg.Store.Path))
	})

	t.Run("aborted input", func(t *testing.T) {
		f := newFixture(t, "db")

		_, err := f.client.AddConnection(context.Background())
		assert.ErrorIs(t, err, prompt.ErrAborted)
		testutil.AssertFileNotExists(t, f.cfg.Store.Path)
	})
}

func TestDeleteConnection(t *testing.T) {
	t.Run("removes selection", func(t *testing.T) {
		samples := testutil.SampleRecords()
		f := newFixture(t, pw, "web (root)")
		f.seed(t, samples...)

		removed, err := f.client.DeleteConnection(context.Background())
		require.NoError(t, err)
		assert.Equal(t, samples[1], removed)
		assert.Equal(t, []string{"db (alice)", "web (root)", "bastion (ops)"}, f.prompts.Offered[0])

		records, err := f.client.Store.Load(pw)
		require.NoError(t, err)
		assert.Equal(t, []models.ConnectionRecord{samples[0], samples[2]}, records)
	})

	t.Run("empty store", func(t *testing.T) {
		f := newFixture(t, pw)
		f.seed(t)

		_, err := f.client.DeleteConnection(context.Background())
		assert.ErrorIs(t, err, models.ErrEmptyStore)
	})

	t.Run("missing store", func(t *testing.T) {
		f := newFixture(t, pw)

		_, err := f.client.DeleteConnection(context.Background())
		assert.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestConnect(t *testing.T) {
	t.Run("launches selection and returns status", func(t *testing.T) {
		f := newFixture(t, pw, "db (alice)")
		f.seed(t, testutil.SampleRecords()...)

		f.launcher.On("Launch", mock.Anything, session.Credentials{
			Username: "alice", Password: "x", Host: "10.0.0.1", Port: 22,
		}).Return(0, nil).Once()

		ctx := events.WithCommand(context.Background(), "connect")
		status, err := f.client.Connect(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, status)
		f.launcher.AssertExpectations(t)
		assert.Equal(t, client.PromptConnect, f.prompts.Asked[1])
		assert.Contains(t, f.logs.String(), `"command":"connect"`)
	})

	t.Run("remote exit status propagated", func(t *testing.T) {
		f := newFixture(t, pw, "web (root)")
		f.seed(t, testutil.SampleRecords()...)
		f.launcher.On("Launch", mock.Anything, mock.Anything).Return(42, nil)

		status, err := f.client.Connect(context.Background())
		assert.Equal(t, 42, status)
		var sessionErr *models.SessionError
		assert.ErrorAs(t, err, &sessionErr)
	})

	t.Run("empty store", func(t *testing.T) {
		f := newFixture(t, pw)
		f.seed(t)

		_, err := f.client.Connect(context.Background())
		assert.ErrorIs(t, err, models.ErrEmptyStore)
		assert.Equal(t, "No connections available.", models.UserMessage(err))
		f.launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		f := newFixture(t, "wrong")
		f.seed(t, testutil.SampleRecord())

		_, err := f.client.Connect(context.Background())
		assert.ErrorIs(t, err, models.ErrAuthentication)
		f.launcher.AssertNotCalled(t, "Launch", mock.Anything, mock.Anything)
	})

	t.Run("selection aborted", func(t *testing.T) {
		f := newFixture(t, pw)
		f.seed(t, testutil.SampleRecord())

		_, err := f.client.Connect(context.Background())
		assert.ErrorIs(t, err, prompt.ErrAborted)
	})
}

func TestImportLegacy(t *testing.T) {
	t.Run("imports valid lines", func(t *testing.T) {
		f := newFixture(t, pw)
		legacy := testutil.WriteLegacyFile(t, t.TempDir())

		result, err := f.client.ImportLegacy(context.Background(), legacy)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Imported)
		assert.Len(t, result.Skipped, 2)
		assert.Equal(t, legacy, result.Source)

		records, err := f.client.Store.Load(pw)
		require.NoError(t, err)
		assert.Len(t, records, 2)

		// Plaintext source is left untouched
		assert.FileExists(t, legacy)
		assert.True(t, f.logs.HasMessage("Skipped legacy entry"))
	})

	t.Run("default path under home", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		testutil.WriteLegacyFile(t, home)

		f := newFixture(t, pw)
		result, err := f.client.ImportLegacy(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".ssh_connections"), result.Source)
	})

	t.Run("missing file", func(t *testing.T) {
		f := newFixture(t, pw)
		_, err := f.client.ImportLegacy(context.Background(), filepath.Join(t.TempDir(), "nope"))
		assert.ErrorIs(t, err, os.ErrNotExist)
		assert.Empty(t, f.prompts.Asked)
	})
}
