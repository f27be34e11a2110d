package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// NodePlugin collects package.json script/dependency context for Node.js
// projects.
type NodePlugin struct {
	deadline time.Duration
	priority int
}

func NewNodePlugin(deadline time.Duration, priority int) *NodePlugin {
	return &NodePlugin{deadline: deadline, priority: priority}
}

func (p *NodePlugin) Name() string  { return "node" }
func (p *NodePlugin) Priority() int { return p.priority }

func (p *NodePlugin) ShouldActivate(buffer, cwd string, listing []string) bool {
	return matchesAnyGlob(listing, "package.json", "package-lock.json", "yarn.lock", "pnpm-lock.yaml") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "npm") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "yarn") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "pnpm")
}

func (p *NodePlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	ctx, cancel := withDeadline(ctx, p.deadline)
	defer cancel()

	out, _, err := runCommand(ctx, cwd, "npm", "pkg", "get", "name", "version", "scripts")
	if err != nil {
		return deadlineOutput(p.Name())
	}
	return protocol.PluginOutput{Name: p.Name(), OK: true, Text: fmt.Sprintf("package.json:\n%s", strings.TrimSpace(out))}
}
