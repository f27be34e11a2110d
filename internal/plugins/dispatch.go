package plugins

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// GatherAll fans out every active plugin in parallel under ctx (itself
// bounded by the gatherer's context_budget_ms), collecting each plugin's
// PluginOutput. A plugin whose Gather panics or errors is represented by a
// dummy empty output rather than failing the whole gather (spec.md §4.4
// step 3 / §7 "Plugin errors are recovered locally").
func (r *Registry) GatherAll(ctx context.Context, cwd string, active []Plugin) []protocol.PluginOutput {
	outputs := make([]protocol.PluginOutput, len(active))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range active {
		i, p := i, p
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					outputs[i] = deadlineOutput(p.Name())
				}
			}()
			outputs[i] = p.Gather(gctx, cwd)
			return nil
		})
	}
	_ = g.Wait() // individual plugin errors never propagate; see above

	if r.tel != nil {
		for _, out := range outputs {
			// A plugin reports !OK only when it errored or ran past its
			// own deadline (spec.md §4.4 step 3); both are folded into the
			// same "timed out" signal here since Gather doesn't
			// distinguish the two to its caller.
			if !out.OK {
				r.tel.RecordPluginTimeout(ctx, out.Name)
			}
		}
	}

	return outputs
}
