package keywords

import (
	"context"
	"math"
	"strings"

	"github.com/spigell/resume-ranker/internal/tokenize"
)

// Frequency ranks candidate phrases by how often they occur, with a boost
// for longer phrases. It needs no model.
type Frequency struct{}

func NewFrequency() *Frequency { return &Frequency{} }

func (f *Frequency) Extract(ctx context.Context, text string, count int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, nil
	}

	counts := make(map[string]float64)
	var order []string
	for _, run := range tokenize.Phrases(text) {
		for i := range run {
			for n := 1; n <= maxNGram && i+n <= len(run); n++ {
				phrase := strings.Join(run[i:i+n], " ")
				if _, ok := counts[phrase]; !ok {
					order = append(order, phrase)
				}
				counts[phrase]++
			}
		}
	}

	candidates := make([]scored, len(order))
	for i, phrase := range order {
		words := float64(strings.Count(phrase, " ") + 1)
		candidates[i] = scored{phrase: phrase, score: counts[phrase] * math.Sqrt(words)}
	}
	return top(candidates, count), nil
}
