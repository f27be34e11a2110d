// Package ctxgather builds the ContextBundle a request sends to the LLM
// connector: mandatory sections gathered synchronously, plugins fanned out
// in parallel under a soft per-request budget, then truncated twice — once
// per-section, once globally by ascending priority — per spec.md §4.4.
package ctxgather

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/nudge-sh/nudge/internal/config"
	"github.com/nudge-sh/nudge/internal/plugins"
	"github.com/nudge-sh/nudge/internal/session"
	"github.com/nudge-sh/nudge/internal/tokenest"
	"github.com/nudge-sh/nudge/pkg/protocol"
)

// SystemInfo is injected by the caller (daemon process) rather than probed
// fresh per request — OS/arch/shell never change within a process lifetime.
type SystemInfo struct {
	OS    string
	Arch  string
	Shell string
}

// DefaultSystemInfo reports the running process's OS/arch; Shell must come
// from the request's ShellMode since the daemon itself has no controlling
// terminal concept.
func DefaultSystemInfo() SystemInfo {
	return SystemInfo{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

// Request is the subset of a decoded IPC request the gatherer needs.
type Request struct {
	Buffer       string
	Cursor       int
	CWD          string
	Session      string
	ShellMode    protocol.ShellMode
	LastExitCode *int
}

// Gatherer assembles ContextBundles.
type Gatherer struct {
	cfg        *config.ContextConfig
	pluginsCfg *config.PluginsConfig
	registry   *plugins.Registry
	sessions   *session.Store
	estimator  *tokenest.Estimator
	listDir    func(cwd string) []string
	sysInfo    SystemInfo
}

// New builds a Gatherer. listDir abstracts directory listing so tests don't
// need a real filesystem; production callers pass a real implementation
// (os.ReadDir-backed, see listing.go).
func New(cfg *config.ContextConfig, pluginsCfg *config.PluginsConfig, registry *plugins.Registry, sessions *session.Store, estimator *tokenest.Estimator, listDir func(cwd string) []string, sysInfo SystemInfo) *Gatherer {
	return &Gatherer{
		cfg:        cfg,
		pluginsCfg: pluginsCfg,
		registry:   registry,
		sessions:   sessions,
		estimator:  estimator,
		listDir:    listDir,
		sysInfo:    sysInfo,
	}
}

// Gather builds a ContextBundle for req. ctx should already carry the
// request's gather deadline (spec.md §5: "gather deadline ≥ per-plugin
// deadline" in the hierarchy, enforced by the caller via
// context.WithTimeout(parent, context_budget_ms)).
func (g *Gatherer) Gather(ctx context.Context, req Request) *protocol.ContextBundle {
	listing := g.listDir(req.CWD)

	bundle := &protocol.ContextBundle{}

	bundle.Sections = append(bundle.Sections, g.historySection(req))
	bundle.Sections = append(bundle.Sections, g.cwdListingSection(listing))
	bundle.Sections = append(bundle.Sections, g.exitCodeSection(req))
	bundle.Sections = append(bundle.Sections, g.systemInfoSection(req))

	if similar := g.similarHistorySection(req); similar != nil {
		bundle.Sections = append(bundle.Sections, *similar)
	}

	active := g.registry.Active(req.Buffer, req.CWD, listing)
	outputs := g.registry.GatherAll(ctx, req.CWD, active)
	for _, out := range outputs {
		if !out.OK {
			continue
		}
		bundle.Sections = append(bundle.Sections, g.pluginSection(out))
	}

	for i := range bundle.Sections {
		g.truncateSection(&bundle.Sections[i])
	}

	g.globalTruncate(bundle)

	if req.Session != "" {
		entry := session.Entry{Command: req.Buffer, Timestamp: time.Now()}
		if req.LastExitCode != nil {
			entry.ExitCode = *req.LastExitCode
		}
		g.sessions.Record(req.Session, entry)
	}

	return bundle
}

func (g *Gatherer) historySection(req Request) protocol.ContextSection {
	entries := g.sessions.Recent(req.Session, g.cfg.HistoryWindow)
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s\n", e.Command)
	}
	text := strings.TrimRight(b.String(), "\n")
	return protocol.ContextSection{
		Kind:      protocol.SectionHistory,
		Priority:  g.cfg.PriorityHistory,
		Payload:   text,
		Tokens:    g.estimator.Estimate(text),
		Mandatory: true,
	}
}

func (g *Gatherer) similarHistorySection(req Request) *protocol.ContextSection {
	if g.cfg.SimilarCommandsMax <= 0 {
		return nil
	}
	ranked := g.sessions.SimilarTo(req.Session, req.Buffer, g.cfg.SimilarCommandsWindow, g.cfg.SimilarCommandsMax)
	if len(ranked) == 0 {
		return nil
	}
	var b strings.Builder
	for _, r := range ranked {
		fmt.Fprintf(&b, "%s\n", r.Entry.Command)
	}
	text := strings.TrimRight(b.String(), "\n")
	return &protocol.ContextSection{
		Kind:     protocol.SectionSimilarHistory,
		Priority: g.cfg.PriorityHistory,
		Payload:  text,
		Tokens:   g.estimator.Estimate(text),
	}
}

func (g *Gatherer) cwdListingSection(listing []string) protocol.ContextSection {
	entries := append([]string(nil), listing...)
	sort.Strings(entries)
	if len(entries) > g.cfg.MaxFilesInListing {
		entries = entries[:g.cfg.MaxFilesInListing]
	}
	text := strings.Join(entries, "\n")
	return protocol.ContextSection{
		Kind:      protocol.SectionCWDListing,
		Priority:  g.cfg.PriorityCWD,
		Payload:   text,
		Tokens:    g.estimator.Estimate(text),
		Mandatory: true,
	}
}

func (g *Gatherer) exitCodeSection(req Request) protocol.ContextSection {
	text := "unknown"
	if req.LastExitCode != nil {
		text = fmt.Sprintf("%d", *req.LastExitCode)
	}
	return protocol.ContextSection{
		Kind:      protocol.SectionExitCode,
		Priority:  g.cfg.PriorityCWD,
		Payload:   text,
		Tokens:    g.estimator.Estimate(text),
		Mandatory: true,
	}
}

func (g *Gatherer) systemInfoSection(req Request) protocol.ContextSection {
	text := fmt.Sprintf("os=%s arch=%s shell=%s", g.sysInfo.OS, g.sysInfo.Arch, req.ShellMode)
	return protocol.ContextSection{
		Kind:      protocol.SectionSystemInfo,
		Priority:  g.cfg.PriorityCWD,
		Payload:   text,
		Tokens:    g.estimator.Estimate(text),
		Mandatory: true,
	}
}

func (g *Gatherer) pluginSection(out protocol.PluginOutput) protocol.ContextSection {
	priority := g.cfg.PriorityPlugins
	switch out.Name {
	case "git":
		priority = g.pluginsCfg.Git.Priority
	case "docker":
		priority = g.pluginsCfg.Docker.Priority
	case "node":
		priority = g.pluginsCfg.Node.Priority
	case "python":
		priority = g.pluginsCfg.Python.Priority
	case "rust":
		priority = g.pluginsCfg.Rust.Priority
	}
	return protocol.ContextSection{
		Kind:     protocol.SectionKind(string(protocol.SectionPluginPrefix) + out.Name),
		Priority: priority,
		Payload:  out.Text,
		Tokens:   g.estimator.Estimate(out.Text),
	}
}
