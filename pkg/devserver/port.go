package devserver

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Listening-socket discovery. On Linux the listeners for a port are found by
// joining /proc/net/tcp[6] socket inodes against /proc/<pid>/fd. Everywhere
// else (and when /proc is unreadable) lsof does the same job.

const tcpListenState = "0A" // TCP_LISTEN in /proc/net/tcp

// FindListeners returns the PIDs of processes listening on the given TCP port.
// An empty slice means nothing is bound - that is not an error.
func FindListeners(port int) ([]int, error) {
	pids, err := findListenersProc(port)
	if err == nil {
		return pids, nil
	}

	return findListenersLsof(port)
}

// findListenersProc resolves listeners via the proc filesystem.
func findListenersProc(port int) ([]int, error) {
	inodes := make(map[string]bool)
	readable := false

	for _, table := range []string{"/proc/net/tcp", "/proc/net/tcp6"} {
		tableInodes, err := listenInodes(table, port)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		readable = true
		for _, inode := range tableInodes {
			inodes[inode] = true
		}
	}

	if !readable {
		// No proc tables on this platform - let the caller fall back to lsof.
		return nil, fmt.Errorf("proc tcp tables unavailable")
	}

	if len(inodes) == 0 {
		return nil, nil
	}

	return pidsForInodes(inodes)
}

// listenInodes parses a /proc/net/tcp table and returns the socket inodes of
// LISTEN entries on the given port.
func listenInodes(table string, port int) ([]string, error) {
	f, err := os.Open(table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var inodes []string
	scanner := bufio.NewScanner(f)
	scanner.Scan() // header line

	for scanner.Scan() {
		// sl local_address rem_address st ... inode
		fields := strings.Fields(scanner.Text())
		if len(fields) < 10 {
			continue
		}

		local := fields[1]
		state := fields[3]
		inode := fields[9]

		if state != tcpListenState {
			continue
		}

		colon := strings.LastIndex(local, ":")
		if colon < 0 {
			continue
		}
		localPort, err := strconv.ParseInt(local[colon+1:], 16, 32)
		if err != nil || int(localPort) != port {
			continue
		}

		inodes = append(inodes, inode)
	}

	return inodes, scanner.Err()
}

// pidsForInodes scans /proc/<pid>/fd for sockets matching the given inodes.
func pidsForInodes(inodes map[string]bool) ([]int, error) {
	procEntries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("failed to read /proc: %w", err)
	}

	var pids []int
	for _, entry := range procEntries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		fdDir := filepath.Join("/proc", entry.Name(), "fd")
		fds, err := os.ReadDir(fdDir)
		if err != nil {
			// Processes owned by other users are unreadable. Skip them.
			continue
		}

		for _, fd := range fds {
			target, err := os.Readlink(filepath.Join(fdDir, fd.Name()))
			if err != nil {
				continue
			}
			if !strings.HasPrefix(target, "socket:[") {
				continue
			}
			inode := strings.TrimSuffix(strings.TrimPrefix(target, "socket:["), "]")
			if inodes[inode] {
				pids = append(pids, pid)
				break
			}
		}
	}

	return pids, nil
}

// findListenersLsof shells out to lsof as a portable fallback.
func findListenersLsof(port int) ([]int, error) {
	out, err := exec.Command("lsof", "-t", fmt.Sprintf("-iTCP:%d", port), "-sTCP:LISTEN").Output()
	if err != nil {
		// lsof exits 1 when nothing matches - treat as no listeners.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof failed: %w", err)
	}

	var pids []int
	for _, line := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}
