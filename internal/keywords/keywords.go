// Package keywords picks the salient phrases of a job description and finds
// which of them a resume does not mention.
package keywords

import (
	"context"
	"sort"
	"strings"
)

// DefaultCount is the number of keywords extracted from a target text.
const DefaultCount = 8

// maxNGram is the longest candidate phrase in words.
const maxNGram = 2

// Extractor returns at most count phrases of text, most salient first. It
// returns fewer when fewer candidates exist and never pads.
type Extractor interface {
	Extract(ctx context.Context, text string, count int) ([]string, error)
}

// Missing returns the keywords that do not occur in text, preserving their
// order. Matching is a case-insensitive substring test.
func Missing(keywords []string, text string) []string {
	lower := strings.ToLower(text)
	missing := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	return missing
}

type scored struct {
	phrase string
	score  float64
}

// top sorts candidates by descending score, keeping first-seen order on ties,
// and returns at most count phrases.
func top(candidates []scored, count int) []string {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if count > len(candidates) {
		count = len(candidates)
	}
	out := make([]string, count)
	for i := range out {
		out[i] = candidates[i].phrase
	}
	return out
}
