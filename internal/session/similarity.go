package session

import "strings"

// termSet returns the lowercase whitespace-delimited token set of a command
// line. The Jaccard comparison this feeds is deliberately cheap (spec.md
// §9 Open Questions: "implement a straightforward token-Jaccard"), mirroring
// the teacher pack's pkg/similarity term-set approach but operating on raw
// command text instead of structured observation records.
func termSet(command string) map[string]bool {
	terms := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(command)) {
		terms[f] = true
	}
	return terms
}

// jaccard computes the Jaccard similarity coefficient between two term sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// Ranked is one similar_history candidate with its similarity score.
type Ranked struct {
	Entry Entry
	Score float64
}

// SimilarTo ranks the last window entries of sessionID by Jaccard
// similarity to target, descending, returning the top max. Entries with
// zero similarity are excluded, matching spec.md's "ranked matches" wording
// (an unrelated command earns no slot in the section).
func (s *Store) SimilarTo(sessionID, target string, window, max int) []Ranked {
	candidates := s.Recent(sessionID, window)
	if len(candidates) == 0 {
		return nil
	}
	targetTerms := termSet(target)

	ranked := make([]Ranked, 0, len(candidates))
	for _, e := range candidates {
		score := jaccard(targetTerms, termSet(e.Command))
		if score > 0 {
			ranked = append(ranked, Ranked{Entry: e, Score: score})
		}
	}

	// Simple insertion sort by descending score: window/max are small
	// (config-bounded, typically well under 100), so O(n²) is immaterial
	// and keeps this dependency-free.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].Score > ranked[j-1].Score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}
