package ctxgather

import (
	"sort"
	"strings"

	"github.com/nudge-sh/nudge/pkg/protocol"
)

// sectionSoftCapTokens bounds a single section before the global pass runs,
// so one oversized section (e.g. a noisy git log) can't starve every other
// section during global truncation.
const sectionSoftCapTokens = 512

// truncateSection applies spec.md §4.4's per-kind truncation policy when a
// section's own estimate exceeds its soft cap: history drops oldest lines,
// cwd_listing drops trailing entries, and plugin sections drop everything
// after the point where the cap is reached (their own "section marker").
func (g *Gatherer) truncateSection(s *protocol.ContextSection) {
	if s.Tokens <= sectionSoftCapTokens {
		return
	}

	switch {
	case s.Kind == protocol.SectionHistory || s.Kind == protocol.SectionSimilarHistory:
		s.Payload = dropOldestLines(s.Payload, sectionSoftCapTokens, g.estimator)
	case s.Kind == protocol.SectionCWDListing:
		s.Payload = dropTrailingLines(s.Payload, sectionSoftCapTokens, g.estimator)
	case strings.HasPrefix(string(s.Kind), string(protocol.SectionPluginPrefix)):
		s.Payload = dropAfterCap(s.Payload, sectionSoftCapTokens, g.estimator)
	default:
		s.Payload = dropAfterCap(s.Payload, sectionSoftCapTokens, g.estimator)
	}
	s.Tokens = g.estimator.Estimate(s.Payload)
	s.Truncated = true
}

func dropOldestLines(text string, capTokens int, est interface{ Estimate(string) int }) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 1 && est.Estimate(strings.Join(lines, "\n")) > capTokens {
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func dropTrailingLines(text string, capTokens int, est interface{ Estimate(string) int }) string {
	lines := strings.Split(text, "\n")
	for len(lines) > 1 && est.Estimate(strings.Join(lines, "\n")) > capTokens {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func dropAfterCap(text string, capTokens int, est interface{ Estimate(string) int }) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		candidate := append(append([]string{}, kept...), line)
		if est.Estimate(strings.Join(candidate, "\n")) > capTokens && len(kept) > 0 {
			break
		}
		kept = candidate
	}
	return strings.Join(kept, "\n")
}

// globalTruncate implements spec.md §4.4 step 5: sort sections by ascending
// priority, drop the lowest-priority ones until the bundle's total is under
// max_total_tokens, never dropping a Mandatory section.
func (g *Gatherer) globalTruncate(bundle *protocol.ContextBundle) {
	budget := g.cfg.MaxTotalTokens
	if bundle.TotalTokens() <= budget {
		return
	}

	sort.SliceStable(bundle.Sections, func(i, j int) bool {
		return bundle.Sections[i].Priority < bundle.Sections[j].Priority
	})

	total := bundle.TotalTokens()
	kept := make([]protocol.ContextSection, 0, len(bundle.Sections))
	for _, s := range bundle.Sections {
		if total > budget && !s.Mandatory {
			total -= s.Tokens
			continue
		}
		kept = append(kept, s)
	}
	bundle.Sections = kept
}
