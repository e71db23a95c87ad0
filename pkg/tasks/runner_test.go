package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdev/pkg/config"
	"agentdev/pkg/metrics"
	"agentdev/pkg/persistence"
	"agentdev/pkg/project"
)

// newTestRunner loads a default config in a temp project dir and returns a
// runner with captured output.
func newTestRunner(t *testing.T, custom []config.CustomTask) (*Runner, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	config.ResetForTest()
	require.NoError(t, config.LoadConfig(dir))
	t.Cleanup(config.ResetForTest)

	registry := NewRegistry()
	require.NoError(t, registry.AddCustom(custom))

	runner := NewRunner(dir, registry, nil, nil)
	out := &bytes.Buffer{}
	runner.Stdout = out
	runner.Stderr = out
	return runner, out
}

// newCheckRunner loads a config whose every tool argv is a no-op so the
// check chain exercises only the settings verification.
func newCheckRunner(t *testing.T, dir string) (*Runner, *bytes.Buffer) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Tests.Runner = []string{"true"}
	cfg.Tools = config.ToolsConfig{
		LintCheck:   []string{"true"},
		FormatCheck: []string{"true"},
		TypeCheck:   []string{"true"},
		Format:      []string{"true"},
		LintFix:     []string{"true"},
		SpellCheck:  []string{"true"},
		SpellFix:    []string{"true"},
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	cfgDir := filepath.Join(dir, config.ProjectConfigDir)
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, config.ProjectConfigFilename), data, 0o644))

	config.ResetForTest()
	require.NoError(t, config.LoadConfig(dir))
	t.Cleanup(config.ResetForTest)

	runner := NewRunner(dir, NewRegistry(), nil, nil)
	out := &bytes.Buffer{}
	runner.Stdout = out
	runner.Stderr = out
	return runner, out
}

func TestRun_CustomTaskSuccess(t *testing.T) {
	runner, out := newTestRunner(t, []config.CustomTask{
		{Name: "hello", Command: []string{"sh", "-c", "echo hi"}},
	})

	code, err := runner.Run(context.Background(), "hello", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "hi")
}

func TestRun_SurfacesToolExitCode(t *testing.T) {
	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "boom", Command: []string{"sh", "-c", "exit 3"}},
	})

	code, err := runner.Run(context.Background(), "boom", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestRun_UnknownTask(t *testing.T) {
	runner, _ := newTestRunner(t, nil)

	code, err := runner.Run(context.Background(), "deploy", RunOpts{})
	require.Error(t, err)
	assert.Equal(t, 1, code)
}

func TestRun_ChainFailsFast(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "ran-after-failure")

	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "ok", Command: []string{"true"}},
		{Name: "fail", Command: []string{"sh", "-c", "exit 2"}},
		{Name: "after", Command: []string{"touch", marker}},
		{Name: "pipeline", Steps: []string{"ok", "fail", "after"}},
	})

	code, err := runner.Run(context.Background(), "pipeline", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 2, code, "chain must surface the failing member's exit code")

	_, statErr := os.Stat(marker)
	assert.True(t, os.IsNotExist(statErr), "members after the failure must not run")
}

func TestRun_ChainRunsAllOnSuccess(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")

	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "a", Command: []string{"touch", first}},
		{Name: "b", Command: []string{"touch", second}},
		{Name: "both", Steps: []string{"a", "b"}},
	})

	code, err := runner.Run(context.Background(), "both", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	_, err = os.Stat(first)
	require.NoError(t, err)
	_, err = os.Stat(second)
	require.NoError(t, err)
}

func TestRun_RecursiveChainRejected(t *testing.T) {
	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "a", Steps: []string{"b"}},
		{Name: "b", Steps: []string{"a"}},
	})

	code, err := runner.Run(context.Background(), "a", RunOpts{})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "recursively")
}

func TestRun_RecordsHistoryAndMetrics(t *testing.T) {
	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "quick", Command: []string{"true"}},
		{Name: "broken", Command: []string{"sh", "-c", "exit 1"}},
	})

	db, err := persistence.InitializeDatabase(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	store, err := persistence.NewStore(db, "")
	require.NoError(t, err)

	collector := metrics.NewCollector()
	runner.store = store
	runner.collector = collector

	_, err = runner.Run(context.Background(), "quick", RunOpts{})
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), "broken", RunOpts{})
	require.NoError(t, err)

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "broken", runs[0].Task)
	assert.Equal(t, 1, runs[0].ExitCode)
	assert.Equal(t, "quick", runs[1].Task)
	assert.True(t, runs[1].Succeeded())

	var buf bytes.Buffer
	require.NoError(t, collector.WriteText(&buf))
	assert.Contains(t, buf.String(), `agentdev_task_runs_total{exit_code="0",status="success",task="quick"} 1`)
	assert.Contains(t, buf.String(), `agentdev_task_runs_total{exit_code="1",status="failure",task="broken"} 1`)
}

func TestRun_CheckFailsOnMalformedSettings(t *testing.T) {
	dir := t.TempDir()
	runner, _ := newCheckRunner(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, project.SettingsFilename), []byte("{not json"), 0o644))

	code, err := runner.Run(context.Background(), "check", RunOpts{})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "settings check failed")
}

func TestRun_CheckPassesWithoutSettings(t *testing.T) {
	dir := t.TempDir()
	runner, _ := newCheckRunner(t, dir)

	code, err := runner.Run(context.Background(), "check", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRun_CheckPassesWithValidSettings(t *testing.T) {
	dir := t.TempDir()
	runner, _ := newCheckRunner(t, dir)

	settings, err := project.Load(dir)
	require.NoError(t, err)
	require.NoError(t, settings.SetTitle("demo"))

	code, err := runner.Run(context.Background(), "check", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestRun_SecretsInjectedIntoToolEnv(t *testing.T) {
	runner, out := newTestRunner(t, []config.CustomTask{
		{Name: "showkey", Command: []string{"sh", "-c", "echo key=$LANGSMITH_API_KEY"}},
	})

	config.SetDecryptedSecrets(map[string]string{"LANGSMITH_API_KEY": "ls-injected"})
	t.Cleanup(func() { config.SetDecryptedSecrets(nil) })

	code, err := runner.Run(context.Background(), "showkey", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "key=ls-injected")
}

func TestRun_NilSinksAreFine(t *testing.T) {
	runner, _ := newTestRunner(t, []config.CustomTask{
		{Name: "quick", Command: []string{"true"}},
	})

	code, err := runner.Run(context.Background(), "quick", RunOpts{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}
