package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdev/pkg/config"
)

func resolveBuiltin(t *testing.T, name string, opts RunOpts) []Step {
	t.Helper()

	task, err := NewRegistry().Get(name)
	require.NoError(t, err)
	return task.Resolve(*config.DefaultConfig(), opts)
}

func TestTest_DefaultPath(t *testing.T) {
	steps := resolveBuiltin(t, "test", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "pytest", "tests/unit_tests"}, steps[0].Argv)
}

func TestTest_PathOverride(t *testing.T) {
	steps := resolveBuiltin(t, "test", RunOpts{TestPath: "tests/unit_tests/test_graph.py"})
	require.Len(t, steps, 1)
	assert.Equal(t, "tests/unit_tests/test_graph.py", steps[0].Argv[len(steps[0].Argv)-1])
}

func TestTest_EnvOverride(t *testing.T) {
	t.Setenv(TestFileEnv, "tests/unit_tests/test_state.py")

	steps := resolveBuiltin(t, "test", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, "tests/unit_tests/test_state.py", steps[0].Argv[len(steps[0].Argv)-1])
}

func TestTest_FlagBeatsEnv(t *testing.T) {
	t.Setenv(TestFileEnv, "tests/unit_tests/test_state.py")

	steps := resolveBuiltin(t, "test", RunOpts{TestPath: "tests/unit_tests/test_graph.py"})
	assert.Equal(t, "tests/unit_tests/test_graph.py", steps[0].Argv[len(steps[0].Argv)-1])
}

func TestIntegrationTests_Path(t *testing.T) {
	steps := resolveBuiltin(t, "integration_tests", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "pytest", "tests/integration_tests"}, steps[0].Argv)
}

func TestTestProfile_AddsProfileFlags(t *testing.T) {
	steps := resolveBuiltin(t, "test_profile", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "pytest", "--profile-svg", "tests/unit_tests"}, steps[0].Argv)
}

func TestExtendedTests_AddsExtendedFlags(t *testing.T) {
	t.Setenv(TestFileEnv, "tests/unit_tests/test_tools.py")

	steps := resolveBuiltin(t, "extended_tests", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "pytest", "--only-extended", "tests/unit_tests/test_tools.py"}, steps[0].Argv)
}

func TestLint_ThreeStepsInOrder(t *testing.T) {
	steps := resolveBuiltin(t, "lint", RunOpts{})
	require.Len(t, steps, 3)
	assert.Equal(t, []string{"uv", "run", "ruff", "check", "."}, steps[0].Argv)
	assert.Equal(t, []string{"uv", "run", "ruff", "format", "--check", "."}, steps[1].Argv)
	assert.Equal(t, []string{"uv", "run", "mypy", "--strict", "."}, steps[2].Argv)
}

func TestFormat_FormatThenFix(t *testing.T) {
	steps := resolveBuiltin(t, "format", RunOpts{})
	require.Len(t, steps, 2)
	assert.Equal(t, []string{"uv", "run", "ruff", "format", "."}, steps[0].Argv)
	assert.Equal(t, []string{"uv", "run", "ruff", "check", "--fix", "."}, steps[1].Argv)
}

func TestSpellTasks(t *testing.T) {
	steps := resolveBuiltin(t, "spell_check", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "codespell", "--toml", "pyproject.toml"}, steps[0].Argv)

	steps = resolveBuiltin(t, "spell_fix", RunOpts{})
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"uv", "run", "codespell", "--toml", "pyproject.toml", "-w"}, steps[0].Argv)
}

func TestCheck_ChainOrder(t *testing.T) {
	task, err := NewRegistry().Get("check")
	require.NoError(t, err)
	require.True(t, task.IsChain())
	assert.Equal(t, []string{"lint", "spell_check", "test"}, task.Chain())
	assert.Empty(t, task.Resolve(*config.DefaultConfig(), RunOpts{}))
}
