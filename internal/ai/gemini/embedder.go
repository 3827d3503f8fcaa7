package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-ranker/internal/embedding"
	"github.com/spigell/resume-ranker/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	// DefaultEmbeddingModel is used when no embedding model is configured.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimension is the requested output dimensionality.
	DefaultEmbeddingDimension = 768

	maxEmbedBatch = 100
	taskType      = "SEMANTIC_SIMILARITY"
)

// Embedder implements embedding.Provider on top of Gemini embeddings.
type Embedder struct {
	client *Client
	model  string
	dim    int
	logger *zap.Logger
}

// NewEmbedder returns an Embedder for model producing dim-sized vectors.
func NewEmbedder(client *Client, model string, dim int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultEmbeddingModel
	}
	if dim <= 0 {
		dim = DefaultEmbeddingDimension
	}
	return &Embedder{
		client: client,
		model:  model,
		dim:    dim,
		logger: logger.WithModel(log, providerName, model),
	}
}

func (e *Embedder) Name() string { return fmt.Sprintf("%s/%s@%d", providerName, e.model, e.dim) }

func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))

	var idx []int
	var inputs []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = embedding.Zero(e.dim)
			continue
		}
		idx = append(idx, i)
		inputs = append(inputs, text)
	}

	dim := int32(e.dim)
	cfg := &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dim,
	}

	for start := 0; start < len(inputs); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(inputs))

		e.logger.Debug("gemini embed content request", zap.Int("inputs", end-start))

		values, err := e.client.EmbedContent(ctx, e.model, inputs[start:end], cfg)
		if err != nil {
			return nil, err
		}

		for j, raw := range values {
			if len(raw) != e.dim {
				return nil, fmt.Errorf("%w: model %s returned %d, expected %d", embedding.ErrDimensionMismatch, e.model, len(raw), e.dim)
			}
			v := make(embedding.Vector, len(raw))
			for k, x := range raw {
				v[k] = float64(x)
			}
			out[idx[start+j]] = v
		}
	}

	return out, nil
}

var _ embedding.Provider = (*Embedder)(nil)
