package logx

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Log file mirroring. When initialized, every log line also goes to a
// timestamped file under the project's log directory. Old files beyond the
// keep count are removed at startup.
//
//nolint:gochecknoglobals // Single process-wide log file, set once at startup.
var (
	logFile   *os.File
	logFileMu sync.Mutex
	teeStderr bool
)

const logFilePrefix = "agentdev-"

// InitializeLogFile opens a new timestamped log file in logsDir and rotates
// out old files so at most keep files remain. When tee is false, stderr
// output is unaffected; the file is a mirror either way.
func InitializeLogFile(logsDir string, keep int, tee bool) error {
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", logsDir, err)
	}

	if err := rotateLogFiles(logsDir, keep); err != nil {
		return fmt.Errorf("failed to rotate log files: %w", err)
	}

	name := logFilePrefix + time.Now().UTC().Format("20060102-150405") + ".log"
	f, err := os.OpenFile(filepath.Join(logsDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFileMu.Lock()
	logFile = f
	teeStderr = tee
	logFileMu.Unlock()
	return nil
}

// CloseLogFile closes the active log file, if any.
func CloseLogFile() error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile == nil {
		return nil
	}
	err := logFile.Close()
	logFile = nil
	return err
}

// writeToLogFile appends a line to the active log file. Write failures are
// swallowed: logging must never fail the command being run.
func writeToLogFile(line string) {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile == nil {
		return
	}
	_, _ = logFile.WriteString(line + "\n")
}

// rotateLogFiles removes the oldest agentdev log files so that after a new
// file is created at most keep files exist.
func rotateLogFiles(logsDir string, keep int) error {
	if keep < 1 {
		keep = 1
	}

	entries, err := os.ReadDir(logsDir)
	if err != nil {
		return err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), logFilePrefix) && strings.HasSuffix(entry.Name(), ".log") {
			names = append(names, entry.Name())
		}
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)

	for len(names) >= keep {
		if err := os.Remove(filepath.Join(logsDir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}
