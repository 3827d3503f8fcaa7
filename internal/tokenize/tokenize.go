// Package tokenize splits text into lowercase word tokens and filters
// English stop words.
package tokenize

import (
	"regexp"
	"strings"
)

var (
	wordRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)
	// phraseBreakRe matches line breaks and punctuation that end a phrase.
	phraseBreakRe = regexp.MustCompile(`[\r\n\t.,;:!?()\[\]{}"|/\-\x{2013}\x{2014}\x{2022}]+`)
)

// Words returns the lowercase tokens of text that are at least two word
// characters long, in order of appearance.
func Words(text string) []string {
	return wordRe.FindAllString(strings.ToLower(text), -1)
}

// Content returns Words(text) with stop words removed.
func Content(text string) []string {
	words := Words(text)
	out := words[:0]
	for _, w := range words {
		if IsStop(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

// NGrams returns the distinct n-grams of up to maxN content words, in order
// of first appearance. Multi-word n-grams stay inside one of Phrases(text).
func NGrams(text string, maxN int) []string {
	if maxN <= 0 {
		maxN = 1
	}
	var (
		seen = make(map[string]struct{})
		out  []string
	)
	for _, run := range Phrases(text) {
		for i := range run {
			for n := 1; n <= maxN && i+n <= len(run); n++ {
				gram := strings.Join(run[i:i+n], " ")
				if _, ok := seen[gram]; ok {
					continue
				}
				seen[gram] = struct{}{}
				out = append(out, gram)
			}
		}
	}
	return out
}

// Phrases splits text into runs of adjacent content words. A run ends at a
// line break, a punctuation mark or a stop word.
func Phrases(text string) [][]string {
	var runs [][]string
	for _, segment := range phraseBreakRe.Split(text, -1) {
		var run []string
		for _, w := range Words(segment) {
			if IsStop(w) {
				if len(run) > 0 {
					runs = append(runs, run)
				}
				run = nil
				continue
			}
			run = append(run, w)
		}
		if len(run) > 0 {
			runs = append(runs, run)
		}
	}
	return runs
}
