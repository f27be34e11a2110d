// Package safety classifies suggested commands by risk and optionally
// blocks dangerous ones (spec.md §4.7). Pattern-based, in the same
// compiled-once idiom as internal/sanitizer and the teacher's
// internal/scoring calculators.
package safety

import (
	"regexp"
	"strings"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// classifier pairs a pattern with the risk it indicates.
type classifier struct {
	pattern *regexp.Regexp
	risk    protocol.Risk
	reason  string
}

// builtinClassifiers is ordered most-dangerous first; the first match wins.
var builtinClassifiers = []classifier{
	{regexp.MustCompile(`rm\s+(-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*)\s+(/\s*$|/\s|~\s*$|~/|\$HOME\b)`), protocol.RiskDangerous, "recursive force-remove of home or root"},
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;`), protocol.RiskDangerous, "fork bomb"},
	{regexp.MustCompile(`dd\s+.*of=/dev/(sd|nvme|disk|rdisk)`), protocol.RiskDangerous, "raw device write"},
	{regexp.MustCompile(`(curl|wget)\s+[^|]*\|\s*(sudo\s+)?(sh|bash|zsh)\b`), protocol.RiskDangerous, "piping remote script into a shell"},
	{regexp.MustCompile(`chmod\s+-R\s+777\s+/`), protocol.RiskDangerous, "world-writable root tree"},
	{regexp.MustCompile(`mkfs\.\w+\s+/dev/`), protocol.RiskDangerous, "filesystem format on a device"},
	{regexp.MustCompile(`\bsudo\b`), protocol.RiskModerate, "elevated privileges"},
	{regexp.MustCompile(`\bgit\s+push\s+.*--force\b`), protocol.RiskModerate, "force push"},
	{regexp.MustCompile(`\bgit\s+reset\s+--hard\b`), protocol.RiskModerate, "discards local changes"},
	{regexp.MustCompile(`\brm\s+-[a-zA-Z]*r`), protocol.RiskModerate, "recursive removal"},
	{regexp.MustCompile(`\bdrop\s+(table|database)\b`), protocol.RiskModerate, "destructive SQL"},
}

// Validator classifies and optionally blocks dangerous suggestions.
type Validator struct {
	classifiers    []classifier
	blockDangerous bool
}

// New builds a Validator from the builtin classifiers plus any
// custom_blocked patterns from config, each treated as dangerous.
func New(customBlocked []string, blockDangerous bool) *Validator {
	all := make([]classifier, len(builtinClassifiers))
	copy(all, builtinClassifiers)
	for _, p := range customBlocked {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		all = append([]classifier{{re, protocol.RiskDangerous, "custom blocked pattern"}}, all...)
	}
	return &Validator{classifiers: all, blockDangerous: blockDangerous}
}

// Classify returns the risk tag and human-readable reason for a command.
// Commands matching no classifier are safe.
func (v *Validator) Classify(command string) (protocol.Risk, string) {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return protocol.RiskSafe, ""
	}
	for _, c := range v.classifiers {
		if c.pattern.MatchString(trimmed) {
			return c.risk, c.reason
		}
	}
	return protocol.RiskSafe, ""
}

// Apply classifies the primary suggestion and every candidate, and — when
// BlockDangerous is configured — empties a dangerous primary suggestion and
// attaches a warning, leaving candidates' risk tags untouched (spec.md
// §4.7: "candidates keep their risk tag").
func (v *Validator) Apply(resp *protocol.Response) {
	risk, reason := v.Classify(resp.Suggestion)
	resp.Risk = risk

	for i := range resp.Candidates {
		cRisk, _ := v.Classify(resp.Candidates[i].Text)
		resp.Candidates[i].Risk = cRisk
	}

	if risk == protocol.RiskDangerous && v.blockDangerous {
		resp.Suggestion = ""
		warning := "blocked a dangerous suggestion"
		if reason != "" {
			warning = "blocked a dangerous suggestion: " + reason
		}
		resp.Warning = &warning
	}
}
