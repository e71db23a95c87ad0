// Package devserver manages the LangGraph dev-server lifecycle: stopping a
// prior instance bound to the API port, clearing the checkpoint/state
// directory, launching the server in the foreground, and opening the hosted
// studio UI once the server answers its readiness probe.
package devserver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"agentdev/pkg/config"
	"agentdev/pkg/exec"
	"agentdev/pkg/logx"
	"agentdev/pkg/metrics"
)

// readyTimeout bounds the readiness probe during start. When the server
// never reports ready the browser opens after the configured delay instead.
const readyTimeout = 30 * time.Second

// Manager drives the dev-server lifecycle for one project.
type Manager struct {
	cfg        config.ServerConfig
	projectDir string
	executor   exec.Executor
	collector  *metrics.Collector
	logger     *logx.Logger

	// openBrowser is swappable for tests.
	openBrowser func(url string) error
}

// NewManager creates a lifecycle manager for the project at projectDir.
func NewManager(projectDir string, cfg config.ServerConfig, collector *metrics.Collector) *Manager {
	return &Manager{
		cfg:         cfg,
		projectDir:  projectDir,
		executor:    exec.NewLocalExec(),
		collector:   collector,
		logger:      logx.NewLogger("devserver"),
		openBrowser: OpenBrowser,
	}
}

// Stop terminates any process listening on the dev-server port and removes
// the state directory. Neither existing is required: stop is idempotent and
// succeeds when there is nothing to do.
func (m *Manager) Stop(_ context.Context) error {
	pids, err := FindListeners(m.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to look up port %d: %w", m.cfg.Port, err)
	}

	self := os.Getpid()
	for _, pid := range pids {
		if pid == self {
			// Never shoot ourselves, even if we hold the port.
			continue
		}
		m.logger.Info("Killing process %d on port %d", pid, m.cfg.Port)
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return fmt.Errorf("failed to kill pid %d: %w", pid, err)
		}
	}

	stateDir := filepath.Join(m.projectDir, m.cfg.StateDir)
	if err := os.RemoveAll(stateDir); err != nil {
		return fmt.Errorf("failed to remove state directory %s: %w", stateDir, err)
	}
	m.logger.Debug("Cleared state directory %s", stateDir)

	return nil
}

// Clean is stop plus a user-facing confirmation.
func (m *Manager) Clean(ctx context.Context) error {
	if err := m.Stop(ctx); err != nil {
		return err
	}
	fmt.Printf("Stopped server on port %d and cleared %s\n", m.cfg.Port, m.cfg.StateDir)
	return nil
}

// Dev launches the dev server in the foreground with no cleanup and no
// browser. Returns the server's exit code.
func (m *Manager) Dev(ctx context.Context) (int, error) {
	return m.runServer(ctx)
}

// Start stops any prior instance, launches the dev server in the foreground,
// and opens the studio UI in the browser once the server is ready (or after
// the configured delay when the readiness probe never succeeds). While the
// server runs, the status endpoint serves metrics and recent logs on the
// metrics port. Returns the server's exit code.
func (m *Manager) Start(ctx context.Context, noBrowser bool) (int, error) {
	if err := m.Stop(ctx); err != nil {
		return 1, err
	}

	// Status endpoint lives for as long as the server run.
	statusCtx, stopStatus := context.WithCancel(ctx)
	defer stopStatus()
	if m.cfg.MetricsPort > 0 {
		status := NewStatusServer(m.cfg.MetricsPort, m.collector)
		go status.Serve(statusCtx)
	}

	if !noBrowser {
		go m.openStudioWhenReady(statusCtx)
	}

	return m.runServer(ctx)
}

// openStudioWhenReady waits for the server to answer its readiness probe,
// falling back to the fixed delay, then opens the hosted UI.
func (m *Manager) openStudioWhenReady(ctx context.Context) {
	delay := time.Duration(m.cfg.BrowserDelaySec) * time.Second

	if err := WaitReady(ctx, m.cfg.APIBaseURL(), readyTimeout); err != nil {
		m.logger.Warn("Readiness probe did not succeed: %v", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}

	if ctx.Err() != nil {
		return
	}

	url := m.cfg.StudioURL()
	m.logger.Info("Opening studio UI: %s", url)
	if err := m.openBrowser(url); err != nil {
		// A headless environment is not a failed start.
		m.logger.Warn("Failed to open browser: %v", err)
	}
}

// runServer runs the configured dev-server command in the foreground,
// wiring the caller's terminal through.
func (m *Manager) runServer(ctx context.Context) (int, error) {
	m.logger.Info("Launching dev server on port %d", m.cfg.Port)

	opts := exec.Opts{
		WorkDir: m.projectDir,
		Env:     config.SecretsEnv(),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Stdin:   os.Stdin,
	}

	result, err := m.executor.Run(ctx, m.cfg.Command, &opts)
	if err != nil {
		return 1, fmt.Errorf("dev server failed to run: %w", err)
	}
	return result.ExitCode, nil
}
