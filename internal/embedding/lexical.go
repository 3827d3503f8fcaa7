package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/spigell/resume-ranker/internal/tokenize"
)

// DefaultLexicalDimension is the vector length of NewLexical(0).
const DefaultLexicalDimension = 1024

const bigramWeight = 0.5

// Lexical is an offline embedder that hashes content unigrams and bigrams
// into a fixed number of signed buckets. It needs no corpus preparation and
// is deterministic across processes.
type Lexical struct {
	dim int
}

// NewLexical returns a Lexical embedder with dim buckets.
func NewLexical(dim int) *Lexical {
	if dim <= 0 {
		dim = DefaultLexicalDimension
	}
	return &Lexical{dim: dim}
}

func (l *Lexical) Name() string { return fmt.Sprintf("lexical/hash-%d", l.dim) }

func (l *Lexical) Dimension() int { return l.dim }

func (l *Lexical) Embed(ctx context.Context, text string) (Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := features(text)
	vec := Zero(l.dim)
	if len(tokens) == 0 {
		return vec, nil
	}

	tf := make(map[string]float64, len(tokens)*2)
	for i, tok := range tokens {
		tf[tok]++
		if i+1 < len(tokens) {
			tf[tok+" "+tokens[i+1]] += bigramWeight
		}
	}

	for feature, count := range tf {
		idx, sign := l.bucket(feature)
		vec[idx] += sign * (1 + math.Log(1+count))
	}

	normalize(vec)
	return vec, nil
}

func (l *Lexical) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	return embedEach(ctx, l, texts)
}

// features returns the content tokens of text. Text made only of stop words
// or one-letter tokens such as "C" or "R & C++" falls back to all words and
// then to raw fields, so that non-blank text never embeds to zero.
func features(text string) []string {
	if tokens := tokenize.Content(text); len(tokens) > 0 {
		return tokens
	}
	if tokens := tokenize.Words(text); len(tokens) > 0 {
		return tokens
	}
	return strings.Fields(strings.ToLower(text))
}

// bucket maps a feature to its index and sign using 64-bit FNV-1a.
func (l *Lexical) bucket(feature string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	sign := 1.0
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(l.dim)), sign
}

func normalize(v Vector) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
