// Package exec provides command execution abstractions for invoking the
// external developer toolchain (test runner, linters, dev server).
package exec

import (
	"context"
	"io"
	"time"
)

// ExecutorType represents the type of executor.
type ExecutorType string

// Executor type constants.
const (
	ExecutorTypeLocal ExecutorType = "local"
)

// Executor defines the interface for executing commands.
type Executor interface {
	// Run executes a command with the given options and returns the result.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Name returns the executor type name for logging/debugging.
	Name() ExecutorType

	// Available returns true if this executor can be used in the current environment.
	Available() bool
}

// Opts contains options for command execution.
type Opts struct {
	// Env contains additional environment variables (KEY=VALUE format),
	// appended to the current process environment.
	Env []string

	// Timeout is the maximum duration for command execution. Zero means no limit,
	// which foreground tools (dev server, watch mode) rely on.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string

	// Stdout and Stderr, when set, receive the command's output as it is
	// produced instead of it being captured into the Result. Foreground
	// tool runs stream; probes and helpers capture.
	Stdout io.Writer
	Stderr io.Writer

	// Stdin, when set, is connected to the command. The dev server and
	// watch mode pass the caller's terminal through.
	Stdin io.Reader
}

// Result contains the result of command execution.
type Result struct {
	// Stdout contains the captured standard output (empty when streamed).
	Stdout string

	// Stderr contains the captured standard error output (empty when streamed).
	Stderr string

	// ExecutorUsed indicates which executor was used (for debugging).
	ExecutorUsed string

	// Duration is how long the command took to execute.
	Duration time.Duration

	// ExitCode is the exit code of the command.
	ExitCode int
}

// DefaultOpts returns default execution options for short-lived tool runs.
func DefaultOpts() Opts {
	return Opts{
		Timeout: 5 * time.Minute,
	}
}
