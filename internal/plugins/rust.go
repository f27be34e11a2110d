package plugins

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// RustPlugin collects crate/toolchain context for Cargo projects.
type RustPlugin struct {
	deadline time.Duration
	priority int
}

func NewRustPlugin(deadline time.Duration, priority int) *RustPlugin {
	return &RustPlugin{deadline: deadline, priority: priority}
}

func (p *RustPlugin) Name() string  { return "rust" }
func (p *RustPlugin) Priority() int { return p.priority }

func (p *RustPlugin) ShouldActivate(buffer, cwd string, listing []string) bool {
	return matchesAnyGlob(listing, "Cargo.toml", "Cargo.lock") ||
		strings.HasPrefix(strings.TrimSpace(buffer), "cargo")
}

func (p *RustPlugin) Gather(ctx context.Context, cwd string) protocol.PluginOutput {
	ctx, cancel := withDeadline(ctx, p.deadline)
	defer cancel()

	out, _, err := runCommand(ctx, cwd, "cargo", "metadata", "--no-deps", "--format-version", "1")
	if err != nil {
		// cargo metadata is comparatively heavy; fall back to a cheap
		// version probe so a missing/slow cargo install still yields
		// something rather than an empty section.
		out, _, err = runCommand(ctx, cwd, "cargo", "--version")
		if err != nil {
			return deadlineOutput(p.Name())
		}
		return protocol.PluginOutput{Name: p.Name(), OK: true, Text: "cargo: " + strings.TrimSpace(out), Truncated: true}
	}
	return protocol.PluginOutput{Name: p.Name(), OK: true, Text: fmt.Sprintf("cargo_metadata_bytes: %d", len(out)), Truncated: true}
}
