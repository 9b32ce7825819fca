package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automata/internal/app"
	"automata/internal/compiler"
	"automata/internal/config"
	"automata/internal/rule"
	"automata/internal/scheduler"
	"automata/internal/storage"
	"automata/pkg/logx"
)

type memBackend struct {
	mu         sync.Mutex
	files      map[string]bool
	registered map[string]bool
	fail       bool
}

func newMemBackend() *memBackend {
	return &memBackend{files: map[string]bool{}, registered: map[string]bool{}}
}

func (b *memBackend) Name() string                 { return "mem" }
func (b *memBackend) Check(compiler.JobUnit) error { return nil }
func (b *memBackend) Close() error                 { return nil }

func (b *memBackend) Write(u compiler.JobUnit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[u.Label] = true
	return nil
}

func (b *memBackend) Exists(label string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[label]
}

func (b *memBackend) Register(_ context.Context, label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return &scheduler.RegistrationError{Label: label, Command: "mem load", Output: "refused"}
	}
	b.registered[label] = true
	return nil
}

func (b *memBackend) Unregister(_ context.Context, label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.registered[label] {
		return scheduler.ErrNotRegistered
	}
	delete(b.registered, label)
	return nil
}

func (b *memBackend) Remove(label string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, label)
	return nil
}

func (b *memBackend) Installed() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for l := range b.files {
		out = append(out, l)
	}
	return out, nil
}

func (b *memBackend) registeredCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.registered)
}

type testEnv struct {
	backend *memBackend
	opts    *RootOptions
}

// newTestEnv opens a fresh App per command over one rule file and one
// in-memory backend, the way separate CLI invocations share disk state.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Home = dir
	cfg.Resolve(dir)

	env := &testEnv{backend: newMemBackend()}
	env.opts = &RootOptions{Open: func(*RootOptions) (*app.App, error) {
		st, err := storage.Open(storage.Config{Driver: "file", Path: cfg.Storage.Path}, logx.Nop())
		if err != nil {
			return nil, err
		}
		return app.Build(cfg, app.Options{Store: st, Backend: env.backend, UserHome: dir})
	}}
	return env
}

func (e *testEnv) run(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand(e.opts)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func decodeData(t *testing.T, stdout string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

type ruleJSON struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Trigger struct {
		Type string `json:"type"`
	} `json:"trigger"`
	Action struct {
		Type string `json:"type"`
	} `json:"action"`
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand(nil)
	commands := []string{
		"add", "list", "show", "edit", "remove", "enable", "disable",
		"pause", "resume", "remove-all", "sync", "suggest", "templates",
		"kinds", "serve", "watch", "mark-run",
	}
	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand(nil)

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormatIsCommandError(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("list", "--format", "xml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAddListShow(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run("add", "--format", "json",
		"--trigger", "fixed-schedule", "--action", "toggle-appearance",
		"--set", "time=22:00", "--set", "mode=dark", "--name", "Night")
	require.NoError(t, err)
	var created ruleJSON
	decodeData(t, stdout, &created)
	assert.Len(t, created.ID, 8)
	assert.Equal(t, "Night", created.Name)
	assert.Equal(t, "fixed-schedule", created.Trigger.Type)
	assert.True(t, created.Enabled)
	assert.Equal(t, 1, env.backend.registeredCount())

	stdout, _, err = env.run("list")
	require.NoError(t, err)
	assert.Contains(t, stdout, created.ID)
	assert.Contains(t, stdout, "Night")

	stdout, _, err = env.run("show", created.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Units:")
	assert.Contains(t, stdout, "installed")
}

func TestAddRejectsUnknownSetting(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, err := env.run("add", "--trigger", "on-login", "--action", "empty-trash", "--set", "bogus=1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeValidation)
	assert.Equal(t, 0, env.backend.registeredCount())
}

func TestAddRejectsIncompatiblePair(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, err := env.run("add", "--trigger", "time-range", "--action", "empty-trash")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeValidation)
}

func TestAddMalformedSetIsUsageError(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, err := env.run("add", "--trigger", "on-login", "--action", "empty-trash", "--set", "noequals")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeUsage)
}

func TestAddInstallFailureKeepsRule(t *testing.T) {
	env := newTestEnv(t)
	env.backend.fail = true

	stdout, _, err := env.run("add", "--format", "json", "--trigger", "on-login", "--action", "empty-trash")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInstall, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "automata enable")

	env.backend.fail = false
	stdout, _, err = env.run("list", "--format", "json")
	require.NoError(t, err)
	var listed struct {
		Rules []ruleJSON `json:"rules"`
	}
	decodeData(t, stdout, &listed)
	require.Len(t, listed.Rules, 1)

	_, _, err = env.run("enable", listed.Rules[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.registeredCount())
}

func TestShowMissingRule(t *testing.T) {
	env := newTestEnv(t)
	_, stderr, err := env.run("show", "deadbeef")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stderr, ErrCodeNotFound)
}

func TestDisableEnableRemove(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := env.run("add", "--format", "json",
		"--trigger", "fixed-interval", "--action", "show-notification",
		"--set", "minutes=45", "--set", "message=Stretch")
	require.NoError(t, err)
	var r ruleJSON
	decodeData(t, stdout, &r)

	_, _, err = env.run("disable", r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, env.backend.registeredCount())

	_, _, err = env.run("enable", r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.registeredCount())

	stdout, _, err = env.run("remove", r.ID)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Removed "+r.ID)
	assert.Equal(t, 0, env.backend.registeredCount())
}

func TestEditChangesSettings(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := env.run("add", "--format", "json",
		"--trigger", "fixed-interval", "--action", "show-notification",
		"--set", "minutes=45", "--set", "message=Stretch")
	require.NoError(t, err)
	var r ruleJSON
	decodeData(t, stdout, &r)

	stdout, _, err = env.run("edit", r.ID, "--set", "minutes=20", "--name", "Breaks")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Every 20 min")
	assert.Equal(t, 1, env.backend.registeredCount())
}

func TestEditRuleSwitchesTrigger(t *testing.T) {
	reg := rule.Default()

	r, err := rule.New(reg, "", rule.FixedInterval{Minutes: 45}, rule.Notify{Message: "Stretch"})
	require.NoError(t, err)
	reset, err := editRule(reg, r, rule.TriggerPathWatch, "", map[string]string{"path": "/tmp/inbox"})
	require.NoError(t, err)
	assert.Empty(t, reset)
	assert.Equal(t, rule.PathWatch{Path: "/tmp/inbox"}, r.Trigger)
	assert.Equal(t, rule.Notify{Message: "Stretch"}, r.Action)

	r, err = rule.New(reg, "", rule.FixedInterval{Minutes: 45}, rule.Notify{Message: "Stretch"})
	require.NoError(t, err)
	first := reg.ActionsFor(rule.TriggerTimeRange)[0]
	as, _ := reg.Action(first)
	values := map[string]string{}
	for _, f := range as.Fields(rule.TriggerTimeRange) {
		if f.Required && f.Default == "" {
			values[f.Key] = "Mail"
		}
	}
	reset, err = editRule(reg, r, rule.TriggerTimeRange, "", values)
	require.NoError(t, err)
	assert.Equal(t, "action", reset)
	assert.Equal(t, first, r.Action.Kind())
}

func TestEditRuleRejectsUnknownKind(t *testing.T) {
	reg := rule.Default()
	r, err := rule.New(reg, "", rule.OnLogin{}, rule.EmptyTrash{})
	require.NoError(t, err)
	_, err = editRule(reg, r, "sunrise", "", nil)
	assert.ErrorIs(t, err, rule.ErrUnknownTrigger)
}

func TestPauseResume(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("add", "--trigger", "on-login", "--action", "empty-trash")
	require.NoError(t, err)

	stdout, _, err := env.run("pause")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Paused 1 rule(s)")
	assert.Equal(t, 0, env.backend.registeredCount())

	stdout, _, err = env.run("list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "paused")

	stdout, _, err = env.run("resume")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Resumed 1 rule(s)")
	assert.Equal(t, 1, env.backend.registeredCount())
}

func TestRemoveAllThenSync(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.run("add", "--trigger", "on-login", "--action", "empty-trash")
	require.NoError(t, err)

	_, _, err = env.run("remove-all")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, 1, env.backend.registeredCount())

	stdout, _, err := env.run("remove-all", "--yes")
	require.NoError(t, err)
	assert.Contains(t, stdout, "remove-all: 1 ok")
	assert.Equal(t, 0, env.backend.registeredCount())

	_, _, err = env.run("sync")
	require.NoError(t, err)
	assert.Equal(t, 1, env.backend.registeredCount())
}

func TestSuggestAndAccept(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run("suggest", "dark", "mode", "at", "10pm")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1. ")

	stdout, _, err = env.run("suggest", "--format", "json", "--accept", "1", "dark mode at 10pm")
	require.NoError(t, err)
	var r ruleJSON
	decodeData(t, stdout, &r)
	assert.Equal(t, "toggle-appearance", r.Action.Type)
	assert.Equal(t, 1, env.backend.registeredCount())

	_, _, err = env.run("suggest", "--accept", "99", "dark mode at 10pm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run("templates")
	require.NoError(t, err)
	assert.Contains(t, stdout, "daily-standup")

	stdout, _, err = env.run("templates", "add", "daily-standup", "--format", "json",
		"--set", "urls=https://meet.example.com")
	require.NoError(t, err)
	var r ruleJSON
	decodeData(t, stdout, &r)
	assert.Equal(t, "open-urls", r.Action.Type)

	_, stderr, err := env.run("templates", "add", "nope")
	require.Error(t, err)
	assert.Contains(t, stderr, ErrCodeNotFound)
}

func TestKindsJSON(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := env.run("kinds", "--format", "json")
	require.NoError(t, err)
	var c rule.Catalog
	decodeData(t, stdout, &c)
	assert.Len(t, c.Triggers, 6)
	assert.Len(t, c.Actions, 11)
}

func TestParseSets(t *testing.T) {
	got, err := parseSets([]string{"time=08:30", " apps = Mail, Slack", "message=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"time": "08:30", "apps": " Mail, Slack", "message": "a=b"}, got)

	_, err = parseSets([]string{"=x"})
	assert.Error(t, err)
}
