package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// PythonPlugin collects virtualenv/dependency context for Python projects.
type PythonPlugin struct {
	deadline time.Duration
	priority int
}

func NewPythonPlugin(deadline time.Duration, priority int) *PythonPlugin {
	return &PythonPlugin{deadline: deadline, priority: priority}
}

func (p *PythonPlugin) Name() string  { return "python" }
func (p *PythonPlugin) Priority() int { return p.priority }

func (p *PythonPlugin) ShouldActivate(buffer, cwd string, listing []string) bool {
	return matchesAnyGlob(listing, "*.py", "**/requirements*.txt", "pyproject.toml", "Pipfile", "setup.py") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "python") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "pip")
}

func (p *PythonPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	ctx, cancel := withDeadline(ctx, p.deadline)
	defer cancel()

	out, _, err := runCommand(ctx, cwd, "python3", "--version")
	if err != nil {
		return deadlineOutput(p.Name())
	}
	text := fmt.Sprintf("interpreter: %s", strings.TrimSpace(out))
	return protocol.PluginOutput{Name: p.Name(), OK: true, Text: text}
}
