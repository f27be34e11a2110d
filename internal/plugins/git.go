package plugins

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// GitDepth controls how much git state the plugin includes, per spec.md
// §4.4: "depth light|standard|detailed controls whether commits, staged
// lists, and diffs are included."
type GitDepth string

const (
	GitDepthLight    GitDepth = "light"
	GitDepthStandard GitDepth = "standard"
	GitDepthDetailed GitDepth = "detailed"
)

// GitPlugin collects branch/status/commit context via the git CLI. It
// never shells out past its configured deadline (spec.md: "never shells
// out past a 50ms deadline" for the strict default).
type GitPlugin struct {
	deadline      time.Duration
	priority      int
	depth         GitDepth
	recentCommits int
}

// NewGitPlugin builds a GitPlugin. deadline should be 50ms per spec.md
// §4.4 unless config explicitly overrides it.
func NewGitPlugin(deadline time.Duration, priority int, depth GitDepth, recentCommits int) *GitPlugin {
	if recentCommits <= 0 {
		recentCommits = 5
	}
	return &GitPlugin{deadline: deadline, priority: priority, depth: depth, recentCommits: recentCommits}
}

func (g *GitPlugin) Name() string    { return "git" }
func (g *GitPlugin) Priority() int   { return g.priority }

// ShouldActivate fires whenever the directory listing shows a .git entry —
// cheap, synchronous, and avoids shelling out just to decide whether to
// shell out.
func (g *GitPlugin) ShouldActivate(buffer, cwd string, listing []string) bool {
	for _, entry := range listing {
		if entry == ".git" {
			return true
		}
	}
	return strings.Contains(buffer, "git ")
}

func (g *GitPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	ctx, cancel := withDeadline(ctx, g.deadline)
	defer cancel()

	var b strings.Builder

	branch, _, err := runCommand(ctx, cwd, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return deadlineOutput(g.Name())
	}
	fmt.Fprintf(&b, "branch: %s", strings.TrimSpace(branch))

	status, _, err := runCommand(ctx, cwd, "git", "status", "--porcelain")
	if err != nil {
		// Partial output (branch only) is still useful context; spec.md
		// only promises plugins never fail the *request*, not that a
		// partial internal failure discards everything already gathered.
		return protocol.PluginOutput{Name: g.Name(), OK: true, Text: b.String()}
	}
	lines := nonEmptyLines(status)
	fmt.Fprintf(&b, "\ndirty_files: %d", len(lines))

	if g.depth == GitDepthLight {
		return protocol.PluginOutput{Name: g.Name(), OK: true, Text: b.String()}
	}

	if len(lines) > 0 {
		staged, unstaged := splitStaged(lines)
		fmt.Fprintf(&b, "\nstaged: %s", strconv.Itoa(len(staged)))
		fmt.Fprintf(&b, "\nunstaged: %s", strconv.Itoa(len(unstaged)))
	}

	if g.depth != GitDepthDetailed {
		return protocol.PluginOutput{Name: g.Name(), OK: true, Text: b.String()}
	}

	log, _, err := runCommand(ctx, cwd, "git", "log", fmt.Sprintf("-%d", g.recentCommits), "--format=%s")
	if err == nil {
		fmt.Fprintf(&b, "\nrecent_commits:\n%s", strings.TrimSpace(log))
	}

	return protocol.PluginOutput{Name: g.Name(), OK: true, Text: b.String()}
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func splitStaged(lines []string) (staged, unstaged []string) {
	for _, line := range lines {
		if len(line) < 2 {
			continue
		}
		if line[0] != ' ' && line[0] != '?' {
			staged = append(staged, line)
		} else {
			unstaged = append(unstaged, line)
		}
	}
	return staged, unstaged
}
