// Package openai embeds text through the OpenAI embeddings API or any
// server that speaks the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spigell/resume-ranker/internal/embedding"
	"github.com/spigell/resume-ranker/internal/logger"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "text-embedding-3-small"
	// MaxBatchSize is the largest number of inputs sent in one request.
	MaxBatchSize = 100

	providerName = "openai"
)

var knownDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Config describes how to reach the embeddings endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// Dimensions requests shortened vectors. Zero keeps the model default.
	Dimensions int
	MaxRetries int
}

// Embedder implements embedding.Provider.
type Embedder struct {
	client     openai.Client
	model      string
	requestDim int
	dim        atomic.Int64
	logger     *zap.Logger
}

// New creates an Embedder. Extra request options are appended after the
// ones derived from cfg.
func New(cfg Config, log *zap.Logger, opts ...option.RequestOption) (*Embedder, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}

	requestOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(base))
	}
	if cfg.MaxRetries > 0 {
		requestOpts = append(requestOpts, option.WithMaxRetries(cfg.MaxRetries))
	}
	requestOpts = append(requestOpts, opts...)

	e := &Embedder{
		client:     openai.NewClient(requestOpts...),
		model:      model,
		requestDim: cfg.Dimensions,
		logger:     logger.WithModel(log, providerName, model),
	}

	switch {
	case cfg.Dimensions > 0:
		e.dim.Store(int64(cfg.Dimensions))
	case knownDimensions[model] > 0:
		e.dim.Store(int64(knownDimensions[model]))
	}

	return e, nil
}

func (e *Embedder) Name() string {
	if e.requestDim > 0 {
		return fmt.Sprintf("%s/%s@%d", providerName, e.model, e.requestDim)
	}
	return providerName + "/" + e.model
}

// Dimension returns the vector length. For unknown models it is learned from
// the first response and is zero until then.
func (e *Embedder) Dimension() int { return int(e.dim.Load()) }

func (e *Embedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch sends non-blank texts in chunks of MaxBatchSize. Blank texts get
// the zero vector without a request.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))

	var idx []int
	var inputs []string
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		idx = append(idx, i)
		inputs = append(inputs, text)
	}

	for start := 0; start < len(inputs); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(inputs))
		vectors, err := e.request(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range vectors {
			out[idx[start+j]] = v
		}
	}

	for i := range out {
		if out[i] == nil {
			out[i] = embedding.Zero(e.Dimension())
		}
	}
	return out, nil
}

func (e *Embedder) request(ctx context.Context, inputs []string) ([]embedding.Vector, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
	}
	if len(inputs) == 1 {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfString: openai.String(inputs[0])}
	} else {
		params.Input = openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs}
	}
	if e.requestDim > 0 {
		params.Dimensions = openai.Int(int64(e.requestDim))
	}

	e.logger.Debug("openai embeddings request", zap.Int("inputs", len(inputs)))

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(inputs))
	}

	vectors := make([]embedding.Vector, len(inputs))
	for _, data := range resp.Data {
		i := int(data.Index)
		if i < 0 || i >= len(vectors) || vectors[i] != nil {
			return nil, fmt.Errorf("openai returned unexpected embedding index %d", data.Index)
		}
		if err := e.checkDimension(len(data.Embedding)); err != nil {
			return nil, err
		}
		vectors[i] = embedding.Vector(data.Embedding)
	}

	e.logger.Debug("openai embeddings response",
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("dimension", e.Dimension()),
	)
	return vectors, nil
}

func (e *Embedder) checkDimension(n int) error {
	if e.dim.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := e.Dimension(); want != n {
		return fmt.Errorf("%w: model %s returned %d, expected %d", embedding.ErrDimensionMismatch, e.model, n, want)
	}
	return nil
}

var _ embedding.Provider = (*Embedder)(nil)
