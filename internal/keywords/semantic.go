package keywords

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-ranker/internal/embedding"
	"github.com/spigell/resume-ranker/internal/tokenize"
)

// Semantic ranks candidate unigrams and bigrams by the cosine similarity of
// their embedding to the embedding of the whole text.
type Semantic struct {
	embedder embedding.Provider
}

func NewSemantic(embedder embedding.Provider) *Semantic {
	return &Semantic{embedder: embedder}
}

func (s *Semantic) Extract(ctx context.Context, text string, count int) ([]string, error) {
	if count <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	phrases := tokenize.NGrams(text, maxNGram)
	if len(phrases) == 0 {
		return nil, nil
	}

	doc, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, phrases)
	if err != nil {
		return nil, fmt.Errorf("embed candidate phrases: %w", err)
	}
	if len(vectors) != len(phrases) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d phrases", len(vectors), len(phrases))
	}

	candidates := make([]scored, len(phrases))
	for i, phrase := range phrases {
		sim, err := embedding.Cosine(doc, vectors[i])
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", phrase, err)
		}
		candidates[i] = scored{phrase: phrase, score: sim}
	}

	return top(candidates, count), nil
}
