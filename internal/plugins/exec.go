package plugins

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// runCommand executes name with args in dir, bounded by ctx's deadline, and
// returns combined stdout (stderr discarded — plugin output is meant to be
// terse context, not diagnostics). exec.CommandContext guarantees the child
// is killed and reaped if ctx is cancelled or its deadline passes, matching
// spec.md §9's "guaranteed child-process reaping even on abandonment."
func runCommand(ctx context.Context, dir, name string, args ...string) (string, time.Duration, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = nil

	err := cmd.Run()
	return out.String(), time.Since(start), err
}
