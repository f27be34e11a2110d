package ipcserver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/nudge-sh/nudge/internal/errs"
)

// writePID writes the current process PID to path, failing if a live
// process already owns it (stale PID files from a crashed daemon are
// cleaned up automatically).
func writePID(path string) error {
	if existing, ok := readLivePID(path); ok {
		return errs.New(errs.ConfigInvalid, fmt.Sprintf("daemon already running (pid %d)", existing))
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// readLivePID reads path and reports the PID it names, but only if that
// process is still alive — a crash leaves a stale file naming a dead PID,
// which readLivePID correctly reports as "not live" so the caller may
// proceed and overwrite it.
func readLivePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if err := syscall.Kill(pid, 0); err != nil {
		return 0, false
	}
	return pid, true
}

// removePID deletes the PID file on clean shutdown.
func removePID(path string) {
	_ = os.Remove(path)
}
