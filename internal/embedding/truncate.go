package embedding

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/spigell/resume-ranker/internal/logger"
	"go.uber.org/zap"
)

// DefaultEncoding is the tokenizer used by current OpenAI and most
// OpenAI-compatible embedding models.
const DefaultEncoding = "cl100k_base"

// Codec converts text to tokens and back. *tiktoken.Tiktoken satisfies it.
type Codec interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// NewTiktokenCodec loads the named tiktoken encoding. The first call may
// download the BPE ranks.
func NewTiktokenCodec(encoding string) (Codec, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("get tiktoken encoding %s: %w", encoding, err)
	}
	return enc, nil
}

// Truncating cuts every input to at most maxTokens tokens before handing it
// to the wrapped provider, so long resumes fit the model context.
type Truncating struct {
	next      Provider
	codec     Codec
	maxTokens int
	logger    *zap.Logger
}

// NewTruncating wraps next. A non-positive maxTokens disables truncation.
func NewTruncating(next Provider, codec Codec, maxTokens int, log *zap.Logger) *Truncating {
	return &Truncating{
		next:      next,
		codec:     codec,
		maxTokens: maxTokens,
		logger:    logger.OrNop(log),
	}
}

func (t *Truncating) Name() string { return t.next.Name() }

func (t *Truncating) Dimension() int { return t.next.Dimension() }

func (t *Truncating) Embed(ctx context.Context, text string) (Vector, error) {
	return t.next.Embed(ctx, t.Truncate(text))
}

func (t *Truncating) EmbedBatch(ctx context.Context, texts []string) ([]Vector, error) {
	cut := make([]string, len(texts))
	for i, text := range texts {
		cut[i] = t.Truncate(text)
	}
	return t.next.EmbedBatch(ctx, cut)
}

// Truncate returns text limited to the configured token budget.
func (t *Truncating) Truncate(text string) string {
	if t.maxTokens <= 0 || t.codec == nil {
		return text
	}
	tokens := t.codec.Encode(text, nil, nil)
	if len(tokens) <= t.maxTokens {
		return text
	}

	t.logger.Debug("truncating text before embedding",
		zap.Int("tokens", len(tokens)),
		zap.Int("max_tokens", t.maxTokens),
	)
	return t.codec.Decode(tokens[:t.maxTokens])
}
