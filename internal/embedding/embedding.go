// Package embedding turns text into fixed-length dense vectors and compares
// them.
package embedding

import "context"

// Vector is a dense embedding. Vectors are only comparable when produced by
// the same provider configuration.
type Vector []float64

// Provider embeds text. Implementations must be safe for concurrent use;
// wrap them with Serialized when they are not.
type Provider interface {
	// Name identifies the model configuration, used as a cache namespace.
	Name() string
	// Dimension is the length of every vector returned by the provider.
	Dimension() int
	// Embed returns the vector for text. Blank text yields Zero(Dimension()).
	Embed(ctx context.Context, text string) (Vector, error)
	// EmbedBatch embeds texts in one call where the backend allows it. The
	// result has the same length and order as texts.
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Zero returns the zero vector of the given dimension.
func Zero(dim int) Vector {
	if dim < 0 {
		dim = 0
	}
	return make(Vector, dim)
}

// IsZero reports whether every component of v is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// embedEach implements EmbedBatch for providers without a native batch call.
func embedEach(ctx context.Context, p Provider, texts []string) ([]Vector, error) {
	out := make([]Vector, len(texts))
	for i, text := range texts {
		v, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
