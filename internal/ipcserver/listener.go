package ipcserver

import (
	"net"
	"os"

	"github.com/nudge-sh/nudge/internal/errs"
)

// listen creates the Unix domain socket at path with owner-only
// permissions (spec.md §6.1: "per-user permissions"), removing a stale
// socket file left behind by a crashed daemon first.
func listen(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.ConfigInvalid, "remove stale socket", err)
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "listen on socket", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, errs.Wrap(errs.ConfigInvalid, "chmod socket", err)
	}
	return l, nil
}
