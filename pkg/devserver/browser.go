package devserver

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"golang.org/x/term"
)

// OpenBrowser opens url in the default browser for the current platform.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	// Detach: the browser outlives the dev-server run.
	go func() { _ = cmd.Wait() }()
	return nil
}

// IsInteractive reports whether stdout is a terminal. Browser opening is
// suppressed in pipelines and CI.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
