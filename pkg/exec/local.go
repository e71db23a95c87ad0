package exec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// LocalExec executes commands directly on the local system.
type LocalExec struct{}

// NewLocalExec creates a new LocalExec executor.
func NewLocalExec() *LocalExec {
	return &LocalExec{}
}

// Name returns the executor type name.
func (e *LocalExec) Name() ExecutorType {
	return ExecutorTypeLocal
}

// Available returns true since local execution is always available.
func (e *LocalExec) Available() bool {
	return true
}

// Run executes a command locally with the given options.
// A non-zero exit code is not an error: callers check Result.ExitCode.
func (e *LocalExec) Run(ctx context.Context, cmd []string, opts *Opts) (Result, error) {
	if len(cmd) == 0 {
		return Result{}, fmt.Errorf("command cannot be empty")
	}
	if opts == nil {
		defaults := DefaultOpts()
		opts = &defaults
	}

	startTime := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(ctx, cmd[0], cmd[1:]...)

	if opts.WorkDir != "" {
		if _, err := os.Stat(opts.WorkDir); os.IsNotExist(err) {
			return Result{}, fmt.Errorf("working directory does not exist: %s", opts.WorkDir)
		}
		execCmd.Dir = opts.WorkDir
	}

	if len(opts.Env) > 0 {
		execCmd.Env = append(os.Environ(), opts.Env...)
	}

	if opts.Stdin != nil {
		execCmd.Stdin = opts.Stdin
	}

	var stdout, stderr string
	var exitCode int
	var err error

	if opts.Stdout != nil || opts.Stderr != nil {
		// Streaming mode: output goes to the caller's writers as produced.
		execCmd.Stdout = opts.Stdout
		execCmd.Stderr = opts.Stderr
		exitCode, err = e.waitCommand(execCmd)
	} else {
		stdout, stderr, exitCode, err = e.captureCommand(execCmd)
	}

	result := Result{
		ExitCode:     exitCode,
		Stdout:       stdout,
		Stderr:       stderr,
		Duration:     time.Since(startTime),
		ExecutorUsed: string(e.Name()),
	}

	// Return the result even if the command failed (non-zero exit code).
	return result, err
}

// captureCommand runs the command and captures output into buffers.
func (e *LocalExec) captureCommand(cmd *exec.Cmd) (stdout, stderr string, exitCode int, err error) {
	var stdoutBuf, stderrBuf strings.Builder
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	exitCode, err = e.waitCommand(cmd)
	return stdoutBuf.String(), stderrBuf.String(), exitCode, err
}

// waitCommand runs the command and maps exec errors to exit codes.
func (e *LocalExec) waitCommand(cmd *exec.Cmd) (int, error) {
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	if exitError, ok := err.(*exec.ExitError); ok {
		// Non-zero exit codes are reported via ExitCode, not as errors.
		return exitError.ExitCode(), nil
	}

	// Command failed to start or was torn down abnormally.
	return -1, err
}
