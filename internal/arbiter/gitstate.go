package arbiter

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/internal/cache"
)

// probeGitState computes the compact git-state descriptor the cache key
// needs (spec.md §4.3 key composition rule c). It is a deliberately
// separate, cheaper probe than the git plugin's full Gather: the cache key
// only needs branch + a dirty-file count/digest, not staged/unstaged splits
// or recent commit subjects, so this duplicates the git plugin's exec
// idiom at a smaller scope rather than depending on internal/plugins for a
// single field.
func probeGitState(ctx context.Context, cwd string, deadline time.Duration) cache.GitStateDescriptor {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	branch, err := runGit(ctx, cwd, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return cache.GitStateDescriptor{}
	}
	status, err := runGit(ctx, cwd, "status", "--porcelain")
	if err != nil {
		return cache.GitStateDescriptor{Branch: strings.TrimSpace(branch)}
	}
	lines := strings.Split(strings.TrimSpace(status), "\n")
	count := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			count++
		}
	}
	return cache.GitStateDescriptor{
		Branch:      strings.TrimSpace(branch),
		DirtyCount:  count,
		DirtyDigest: strings.TrimSpace(status),
	}
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	return out.String(), err
}
