package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/resume-ranker/internal/logger"
	"github.com/spigell/resume-ranker/internal/utils"
	"go.uber.org/zap"
)

// DefaultKeywordModel is used when no generation model is configured.
const DefaultKeywordModel = "gemini-2.5-flash"

const defaultMaxLogLength = 200

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, model, system, prompt string) (string, error)
}

// KeywordExtractor asks a Gemini model for the most salient phrases of a text.
type KeywordExtractor struct {
	generator contentGenerator
	model     string
	maxLogLen int
	logger    *zap.Logger
}

// NewKeywordExtractor returns an extractor that prompts model through generator.
func NewKeywordExtractor(generator contentGenerator, model string, maxLogLength int, log *zap.Logger) *KeywordExtractor {
	if model = strings.TrimSpace(model); model == "" {
		model = DefaultKeywordModel
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	return &KeywordExtractor{
		generator: generator,
		model:     model,
		maxLogLen: maxLogLength,
		logger:    logger.WithModel(log, providerName, model),
	}
}

// Extract returns at most count lowercase keywords, most salient first.
func (k *KeywordExtractor) Extract(ctx context.Context, text string, count int) ([]string, error) {
	if count <= 0 || strings.TrimSpace(text) == "" {
		return nil, nil
	}

	prompt := buildPrompt(text, count)

	k.logger.Debug("gemini keywords request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.Preview(prompt, k.maxLogLen)),
	)

	raw, err := k.generator.GenerateContent(ctx, k.model, "", prompt)
	if err != nil {
		return nil, err
	}

	k.logger.Debug("gemini keywords response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, k.maxLogLen)),
	)

	keywords, err := parseKeywords(raw)
	if err != nil {
		return nil, err
	}
	return normalizeKeywords(keywords, count), nil
}

func buildPrompt(text string, count int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Return the {{COUNT}} most important keywords of the text as JSON {\"keywords\": [...]}.\n\n{{TEXT}}"
	}
	prompt := strings.ReplaceAll(template, "{{COUNT}}", strconv.Itoa(count))
	return strings.ReplaceAll(prompt, "{{TEXT}}", strings.TrimSpace(text))
}

type keywordsResponse struct {
	Keywords []string `mapstructure:"keywords"`
}

// parseKeywords accepts either {"keywords": [...]} or a bare JSON array.
func parseKeywords(raw string) ([]string, error) {
	cleaned := extractJSON(raw)

	var data any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if list, ok := data.([]any); ok {
		data = map[string]any{"keywords": list}
	}

	var resp keywordsResponse
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &resp,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode gemini keywords: %w", err)
	}
	return resp.Keywords, nil
}

func normalizeKeywords(keywords []string, count int) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, min(len(keywords), count))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.Join(strings.Fields(kw), " "))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
		if len(out) == count {
			break
		}
	}
	return out
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
