package plugins

import "github.com/bmatcuk/doublestar/v4"

// matchesAnyGlob reports whether any entry in listing matches any of the
// given doublestar globs (from the kilroy example pack's dependency,
// bmatcuk/doublestar/v4 — multi-segment glob matching a single
// filepath.Match call can't express, e.g. "**/requirements*.txt").
func matchesAnyGlob(listing []string, globs ...string) bool {
	for _, entry := range listing {
		for _, g := range globs {
			if ok, _ := doublestar.Match(g, entry); ok {
				return true
			}
		}
	}
	return false
}
