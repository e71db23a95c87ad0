// Package tasks defines the workflow task model: the builtin command surface
// (test, lint, format, spell check, and their variants), user-defined tasks
// from the project task file, and the runner that executes them against the
// external toolchain.
package tasks

import (
	"os"

	"agentdev/pkg/config"
)

// TestFileEnv overrides the test path for the test-family tasks, matching
// the `TEST_FILE=... make test` convention the projects already use.
const TestFileEnv = "TEST_FILE"

// Step is one external tool invocation within a task.
type Step struct {
	Argv    []string
	WorkDir string // relative to the project root, empty means the root
	Env     []string
}

// RunOpts carries per-invocation overrides.
type RunOpts struct {
	// TestPath overrides the test path for test-family tasks. Takes
	// precedence over the TEST_FILE environment variable.
	TestPath string
}

// Task is a runnable workflow command. A task either resolves to concrete
// steps (builtin and command-style custom tasks) or chains other tasks by
// name (check, custom step-style tasks). Chains fail fast.
type Task struct {
	Name        string
	Description string
	Builtin     bool

	build func(cfg config.Config, opts RunOpts) []Step
	chain []string

	// verify runs before any step or chain member. A failing verification
	// aborts the task with exit code 1.
	verify func(projectDir string) error
}

// IsChain reports whether the task runs other tasks instead of commands.
func (t *Task) IsChain() bool {
	return len(t.chain) > 0
}

// Chain returns the names of the chained tasks in execution order.
func (t *Task) Chain() []string {
	return t.chain
}

// Resolve builds the task's steps from the current config and options.
// Chain tasks have no steps of their own.
func (t *Task) Resolve(cfg config.Config, opts RunOpts) []Step {
	if t.build == nil {
		return nil
	}
	return t.build(cfg, opts)
}

// testPath picks the effective test path: explicit flag, then the TEST_FILE
// environment variable, then the configured unit test path.
func testPath(cfg config.Config, opts RunOpts) string {
	if opts.TestPath != "" {
		return opts.TestPath
	}
	if env := os.Getenv(TestFileEnv); env != "" {
		return env
	}
	return cfg.Tests.UnitPath
}

// argv concatenates an argv prefix with extra arguments, copying so callers
// never alias config slices.
func argv(prefix []string, extra ...string) []string {
	out := make([]string, 0, len(prefix)+len(extra))
	out = append(out, prefix...)
	out = append(out, extra...)
	return out
}
