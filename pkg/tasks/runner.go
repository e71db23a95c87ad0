package tasks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"agentdev/pkg/config"
	"agentdev/pkg/exec"
	"agentdev/pkg/logx"
	"agentdev/pkg/metrics"
	"agentdev/pkg/persistence"
)

// Runner executes tasks against the external toolchain, streaming tool
// output to the caller's terminal and recording each run in the history
// database and the metrics collector. Both sinks are optional: a missing or
// broken database degrades to a warning, never a failed task.
type Runner struct {
	registry   *Registry
	executor   exec.Executor
	store      *persistence.Store
	collector  *metrics.Collector
	projectDir string
	logger     *logx.Logger

	// Stdout and Stderr receive tool output; tests redirect them.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a Runner for the project at projectDir. store and
// collector may be nil.
func NewRunner(projectDir string, registry *Registry, store *persistence.Store, collector *metrics.Collector) *Runner {
	return &Runner{
		registry:   registry,
		executor:   exec.NewLocalExec(),
		store:      store,
		collector:  collector,
		projectDir: projectDir,
		logger:     logx.NewLogger("tasks"),
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
	}
}

// Run executes the named task and returns its exit code. Chain tasks run
// their members in order and stop at the first nonzero exit. The returned
// error covers failures to run at all; a tool that ran and failed is
// reported through the exit code.
func (r *Runner) Run(ctx context.Context, name string, opts RunOpts) (int, error) {
	return r.run(ctx, name, opts, make(map[string]bool))
}

func (r *Runner) run(ctx context.Context, name string, opts RunOpts, active map[string]bool) (int, error) {
	task, err := r.registry.Get(name)
	if err != nil {
		return 1, err
	}
	if active[task.Name] {
		return 1, fmt.Errorf("task %q recursively includes itself", task.Name)
	}
	active[task.Name] = true
	defer delete(active, task.Name)

	if task.verify != nil {
		if err := task.verify(r.projectDir); err != nil {
			return 1, err
		}
	}

	started := time.Now()
	code, err := r.execute(ctx, task, opts, active)
	if err != nil {
		return code, err
	}

	r.record(task.Name, code, time.Since(started), started)
	return code, nil
}

func (r *Runner) execute(ctx context.Context, task *Task, opts RunOpts, active map[string]bool) (int, error) {
	if task.IsChain() {
		for _, member := range task.Chain() {
			code, err := r.run(ctx, member, opts, active)
			if err != nil {
				return code, err
			}
			if code != 0 {
				r.logger.Info("Task %s aborted: %s exited with code %d", task.Name, member, code)
				return code, nil
			}
		}
		return 0, nil
	}

	cfg, err := config.GetConfig()
	if err != nil {
		return 1, err
	}

	for _, step := range task.Resolve(cfg, opts) {
		code, err := r.runStep(ctx, task.Name, step)
		if err != nil {
			return code, err
		}
		if code != 0 {
			return code, nil
		}
	}
	return 0, nil
}

// runStep runs one tool invocation in the foreground. No timeout: test
// suites and fix tools run as long as they need.
func (r *Runner) runStep(ctx context.Context, taskName string, step Step) (int, error) {
	r.logger.Debug("Task %s: running %v", taskName, step.Argv)

	workDir := r.projectDir
	if step.WorkDir != "" {
		workDir = filepath.Join(r.projectDir, step.WorkDir)
	}

	// Stored secrets go into the tool environment; explicit step env wins.
	env := append(config.SecretsEnv(), step.Env...)

	result, err := r.executor.Run(ctx, step.Argv, &exec.Opts{
		WorkDir: workDir,
		Env:     env,
		Stdout:  r.Stdout,
		Stderr:  r.Stderr,
		Stdin:   os.Stdin,
	})
	if err != nil {
		return 1, fmt.Errorf("task %s failed to run %v: %w", taskName, step.Argv, err)
	}
	return result.ExitCode, nil
}

// record persists the run and updates metrics. History is best effort.
func (r *Runner) record(task string, exitCode int, duration time.Duration, started time.Time) {
	if r.collector != nil {
		r.collector.RecordTaskRun(task, exitCode, duration)
	}
	if r.store != nil {
		if _, err := r.store.RecordRun(task, exitCode, duration, started); err != nil {
			r.logger.Warn("Failed to record run of %s: %v", task, err)
		}
	}
}
