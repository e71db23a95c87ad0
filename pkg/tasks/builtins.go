package tasks

import (
	"fmt"

	"agentdev/pkg/config"
	"agentdev/pkg/project"
)

// builtinTasks returns the builtin command surface in help order.
// The dev-server lifecycle commands (start, stop, clean, dev) live in
// pkg/devserver; everything that shells out to the test/lint toolchain
// is a task.
func builtinTasks() []*Task {
	return []*Task{
		{
			Name:        "test",
			Description: "run the unit test suite (TEST_FILE or -path overrides the path)",
			Builtin:     true,
			build: func(cfg config.Config, opts RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tests.Runner, testPath(cfg, opts))}}
			},
		},
		{
			Name:        "integration_tests",
			Description: "run the integration test suite",
			Builtin:     true,
			build: func(cfg config.Config, _ RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tests.Runner, cfg.Tests.IntegrationPath)}}
			},
		},
		{
			Name:        "test_watch",
			Description: "rerun unit tests on file changes until interrupted",
			Builtin:     true,
			build: func(cfg config.Config, opts RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tests.WatchRunner, testPath(cfg, opts))}}
			},
		},
		{
			Name:        "test_profile",
			Description: "run unit tests with profiling output",
			Builtin:     true,
			build: func(cfg config.Config, opts RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tests.Runner, append(cfg.Tests.ProfileFlags, testPath(cfg, opts))...)}}
			},
		},
		{
			Name:        "extended_tests",
			Description: "run extended-marked tests (TEST_FILE honored)",
			Builtin:     true,
			build: func(cfg config.Config, opts RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tests.Runner, append(cfg.Tests.ExtendedFlags, testPath(cfg, opts))...)}}
			},
		},
		{
			Name:        "lint",
			Description: "run linter, format check, and strict type check",
			Builtin:     true,
			build: func(cfg config.Config, _ RunOpts) []Step {
				return []Step{
					{Argv: argv(cfg.Tools.LintCheck)},
					{Argv: argv(cfg.Tools.FormatCheck)},
					{Argv: argv(cfg.Tools.TypeCheck)},
				}
			},
		},
		{
			Name:        "format",
			Description: "auto-format code and fix lint issues",
			Builtin:     true,
			build: func(cfg config.Config, _ RunOpts) []Step {
				return []Step{
					{Argv: argv(cfg.Tools.Format)},
					{Argv: argv(cfg.Tools.LintFix)},
				}
			},
		},
		{
			Name:        "spell_check",
			Description: "check spelling",
			Builtin:     true,
			build: func(cfg config.Config, _ RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tools.SpellCheck)}}
			},
		},
		{
			Name:        "spell_fix",
			Description: "fix spelling",
			Builtin:     true,
			build: func(cfg config.Config, _ RunOpts) []Step {
				return []Step{{Argv: argv(cfg.Tools.SpellFix)}}
			},
		},
		{
			Name:        "check",
			Description: "lint, spell check, and test; abort on first failure",
			Builtin:     true,
			chain:       []string{"lint", "spell_check", "test"},
			// A broken settings file fails the whole check before any
			// tool runs; an absent file is fine.
			verify: func(projectDir string) error {
				if !project.Exists(projectDir) {
					return nil
				}
				if _, err := project.Load(projectDir); err != nil {
					return fmt.Errorf("project settings check failed: %w", err)
				}
				return nil
			},
		},
	}
}
