package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-ranker/internal/ai/gemini"
	"github.com/spigell/resume-ranker/internal/embedding"
	openaiembed "github.com/spigell/resume-ranker/internal/embedding/openai"
	"github.com/spigell/resume-ranker/internal/keywords"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/ranking"
	"github.com/spigell/resume-ranker/internal/secrets"
	"go.uber.org/zap"
)

const (
	providerLexical   = "lexical"
	providerGemini    = "gemini"
	providerOpenAI    = "openai"
	providerSemantic  = "semantic"
	providerFrequency = "frequency"

	defaultOpenAIMaxTokens = 8191
	defaultGeminiMaxTokens = 2048
)

// newModelContext builds the model handles for the whole process. The
// returned close function releases the persistent cache.
func newModelContext(ctx context.Context, config *Config, log *zap.Logger) (ranking.ModelContext, func() error, error) {
	noop := func() error { return nil }

	embedder, closeCache, err := newEmbedder(ctx, config.Embedder, log)
	if err != nil {
		return ranking.ModelContext{}, noop, fmt.Errorf("embedder: %w", err)
	}

	extractor, err := newKeywordExtractor(ctx, config.Keywords, config.Embedder, embedder, log)
	if err != nil {
		return ranking.ModelContext{}, closeCache, fmt.Errorf("keywords: %w", err)
	}

	return ranking.ModelContext{Embedder: embedder, Keywords: extractor}, closeCache, nil
}

func newEmbedder(ctx context.Context, cfg *EmbedderConfig, log *zap.Logger) (embedding.Provider, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		cfg = &EmbedderConfig{}
	}

	var provider embedding.Provider
	maxTokens := cfg.MaxTokens

	name := normalizeProvider(cfg.Provider, providerLexical)
	switch name {
	case providerLexical:
		provider = embedding.NewLexical(cfg.Dimension)
	case providerGemini:
		gcfg := orEmptyGemini(cfg.Gemini)
		client, err := newGeminiClient(ctx, gcfg, log)
		if err != nil {
			return nil, noop, err
		}
		provider = gemini.NewEmbedder(client, gcfg.Model, cfg.Dimension, log)
		if maxTokens == 0 {
			maxTokens = defaultGeminiMaxTokens
		}
	case providerOpenAI:
		ocfg := cfg.OpenAI
		if ocfg == nil {
			ocfg = &OpenAIConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			File:  ocfg.APIKeyFile,
			Value: ocfg.APIKey,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, noop, fmt.Errorf("%w (set embedder.openai.api-key-file or OPENAI_API_KEY_FILE)", err)
		}
		provider, err = openaiembed.New(openaiembed.Config{
			APIKey:     apiKey,
			BaseURL:    ocfg.BaseURL,
			Model:      ocfg.Model,
			Dimensions: cfg.Dimension,
			MaxRetries: ocfg.MaxRetries,
		}, log)
		if err != nil {
			return nil, noop, err
		}
		if maxTokens == 0 {
			maxTokens = defaultOpenAIMaxTokens
		}
	default:
		return nil, noop, fmt.Errorf("unsupported embedder provider: %s", cfg.Provider)
	}

	if name != providerLexical && maxTokens > 0 {
		codec, err := embedding.NewTiktokenCodec(embedding.DefaultEncoding)
		if err != nil {
			log.Warn("token truncation disabled", zap.Error(err))
		} else {
			provider = embedding.NewTruncating(provider, codec, maxTokens, log)
		}
	}

	if cfg.Serialize {
		provider = embedding.NewSerialized(provider)
	}

	var store embedding.Store
	closeStore := noop
	if path := strings.TrimSpace(cfg.CacheFile); path != "" {
		bolt, err := embedding.OpenBoltStore(path)
		if err != nil {
			return nil, noop, err
		}
		store = bolt
		closeStore = bolt.Close
	}

	log.Info("embedder ready",
		append(logger.ModelFields(name, provider.Name()),
			zap.Int("dimension", provider.Dimension()),
			zap.Bool("persistent_cache", store != nil),
		)...,
	)

	return embedding.NewCached(provider, store, log), closeStore, nil
}

func newKeywordExtractor(ctx context.Context, cfg *KeywordsConfig, embedderCfg *EmbedderConfig, embedder embedding.Provider, log *zap.Logger) (keywords.Extractor, error) {
	if cfg == nil {
		cfg = &KeywordsConfig{}
	}

	switch normalizeProvider(cfg.Provider, providerSemantic) {
	case providerSemantic:
		return keywords.NewSemantic(embedder), nil
	case providerFrequency:
		return keywords.NewFrequency(), nil
	case providerGemini:
		gcfg := cfg.Gemini
		if gcfg == nil && embedderCfg != nil {
			gcfg = embedderCfg.Gemini
		}
		gcfg = orEmptyGemini(gcfg)
		client, err := newGeminiClient(ctx, gcfg, log)
		if err != nil {
			return nil, err
		}
		return gemini.NewKeywordExtractor(client, gcfg.Model, gcfg.MaxLogLength, log), nil
	default:
		return nil, fmt.Errorf("unsupported keywords provider: %s", cfg.Provider)
	}
}

func newGeminiClient(ctx context.Context, cfg *GeminiConfig, log *zap.Logger) (*gemini.Client, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.APIKeyFile,
		Value: cfg.APIKey,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	clientLogger := log.With(
		zap.String(logger.FieldProvider, providerGemini),
		zap.Int("ai_retry_attempts", cfg.MaxRetries),
	)
	return gemini.NewClient(ctx, apiKey, cfg.MaxRetries, clientLogger)
}

func orEmptyGemini(cfg *GeminiConfig) *GeminiConfig {
	if cfg == nil {
		return &GeminiConfig{}
	}
	return cfg
}

func normalizeProvider(name, fallback string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fallback
	}
	return name
}
