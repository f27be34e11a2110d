// Package tokenest estimates token counts for ContextBundle sections.
// spec.md §4.4 names a closed-form estimate, ceil(word_count × 1.3); this
// package uses that formula as its always-available fallback and prefers a
// real cl100k_base tokenizer encode when the tokenizer package initializes
// successfully, since the teacher pack carries tiktoken-go/tokenizer as a
// direct dependency.
package tokenest

import (
	"math"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator estimates a token count for a piece of text.
type Estimator struct {
	mu    sync.Mutex
	codec tokenizer.Codec
	ready bool
}

// New builds an Estimator, eagerly attempting to load the cl100k_base codec.
// A load failure is not an error for callers: Estimate transparently falls
// back to the word-count formula.
func New() *Estimator {
	e := &Estimator{}
	if codec, err := tokenizer.Get(tokenizer.Cl100kBase); err == nil {
		e.codec = codec
		e.ready = true
	}
	return e
}

// Estimate returns the estimated token count for text.
func (e *Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	if e != nil && e.ready {
		e.mu.Lock()
		ids, _, err := e.codec.Encode(text)
		e.mu.Unlock()
		if err == nil {
			return len(ids)
		}
	}
	return formulaEstimate(text)
}

// formulaEstimate implements spec.md's closed-form fallback:
// ceil(word_count × 1.3).
func formulaEstimate(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) * 1.3))
}
