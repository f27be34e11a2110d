// Package plugins implements the per-ecosystem context collectors named in
// spec.md §4.4's "Plugin interface contract": git, docker, node, python,
// rust. Each plugin shells out to an external tool under a strict per-call
// deadline and never fails the request — a plugin that errors or times out
// yields a dummy empty PluginOutput (spec.md: "Plugins never fail the
// request").
package plugins

import (
	"context"
	"time"

	"github.com/nudge-sh/nudge/internal/telemetry"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// Plugin is the tagged-variant-friendly interface spec.md §9 allows instead
// of full dynamic dispatch; this repo keeps the trait-based shape the
// teacher's own internal/pattern.Detector style favors (small interfaces,
// struct-based implementations), since the plugin set is small and fixed.
type Plugin interface {
	// Name identifies the plugin (used as the ContextSection kind suffix:
	// "plugin:<name>").
	Name() string

	// Priority is this plugin's default truncation priority (spec.md §3:
	// plugins default to 40, overridable per-plugin via config).
	Priority() int

	// ShouldActivate reports whether this plugin is relevant given the
	// current buffer and working directory listing.
	ShouldActivate(buffer, cwd string, listing []string) bool

	// Gather runs the plugin's collection logic. ctx carries the per-plugin
	// deadline (spec.md §4.4: "each plugin has its own deadline"); Gather
	// must respect ctx.Done() and never block past it.
	Gather(ctx context.Context, cwd string) protocol.PluginOutput
}

// Registry holds the enabled plugin set and dispatches them in parallel.
type Registry struct {
	plugins []Plugin
	tel     *telemetry.Telemetry
}

// NewRegistry builds a registry from the given plugins, in priority order
// of registration (not evaluation order — they run concurrently).
func NewRegistry(plugins ...Plugin) *Registry {
	return &Registry{plugins: plugins}
}

// WithTelemetry attaches the process-wide telemetry instance so GatherAll
// can record per-plugin timeouts. tel may be nil.
func (r *Registry) WithTelemetry(tel *telemetry.Telemetry) *Registry {
	r.tel = tel
	return r
}

// Active returns the plugins whose ShouldActivate returns true for this
// request, preserving registration order.
func (r *Registry) Active(buffer, cwd string, listing []string) []Plugin {
	var active []Plugin
	for _, p := range r.plugins {
		if p.ShouldActivate(buffer, cwd, listing) {
			active = append(active, p)
		}
	}
	return active
}

// deadlineOutput is a helper constructor for a plugin's "abandoned" result.
func deadlineOutput(name string) protocol.PluginOutput {
	return protocol.PluginOutput{Name: name, OK: false, Text: ""}
}

// withDeadline runs fn with a context bounded by the given deadline
// duration. Declared here so every plugin's Gather implementation applies
// the same pattern instead of hand-rolling context.WithTimeout calls.
func withDeadline(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
