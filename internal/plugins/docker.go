package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// DockerPlugin collects container/compose context. It shells out to the
// docker CLI rather than linking docker/docker's client SDK: the daemon
// only needs a terse status summary, not the full Docker Engine API
// surface, and exec keeps this plugin symmetric with the other four.
type DockerPlugin struct {
	deadline time.Duration
	priority int
}

func NewDockerPlugin(deadline time.Duration, priority int) *DockerPlugin {
	return &DockerPlugin{deadline: deadline, priority: priority}
}

func (p *DockerPlugin) Name() string  { return "docker" }
func (p *DockerPlugin) Priority() int { return p.priority }

func (p *DockerPlugin) ShouldActivate(buffer, cwd string, listing []string) bool {
	return matchesAnyGlob(listing, "Dockerfile", "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "docker")
}

func (p *DockerPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	ctx, cancel := withDeadline(ctx, p.deadline)
	defer cancel()

	out, _, err := runCommand(ctx, cwd, "docker", "ps", "--format", "{{.Names}}\t{{.Status}}")
	if err != nil {
		return deadlineOutput(p.Name())
	}
	lines := nonEmptyLines(out)
	return protocol.PluginOutput{Name: p.Name(), OK: true, Text: fmt.Sprintf("running_containers: %d\n%s", len(lines), strings.TrimSpace(out))}
}
