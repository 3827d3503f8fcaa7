package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type generateCall struct {
	model    string
	config   *genai.GenerateContentConfig
	contents []*genai.Content
}

type fakeResponse struct {
	generate *genai.GenerateContentResponse
	embed    *genai.EmbedContentResponse
	err      error
}

type fakeModels struct {
	mu          sync.Mutex
	queue       []fakeResponse
	calls       []generateCall
	embedCalls  []generateCall
	embedConfig *genai.EmbedContentConfig
}

func (f *fakeModels) enqueue(resp fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, resp)
}

func (f *fakeModels) next() (fakeResponse, error) {
	if len(f.queue) == 0 {
		return fakeResponse{}, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res, nil
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, generateCall{model: model, config: config, contents: contents})
	res, err := f.next()
	if err != nil {
		return nil, err
	}
	return res.generate, res.err
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls = append(f.embedCalls, generateCall{model: model, contents: contents})
	f.embedConfig = config
	res, err := f.next()
	if err != nil {
		return nil, err
	}
	return res.embed, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func TestClientRetriesOnTemporaryError(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}})
	models.enqueue(fakeResponse{generate: textResponse("retry ok")})

	c := &Client{models: models, maxRetries: 2, logger: zap.NewNop()}

	output, err := c.GenerateContent(context.Background(), "gemini-pro", "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}

	if len(*delays) != 1 || (*delays)[0] != baseBackoff {
		t.Fatalf("unexpected backoff delays: %v", *delays)
	}

	for _, call := range models.calls {
		if call.model != "gemini-pro" {
			t.Fatalf("unexpected model: %q", call.model)
		}
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if got := call.contents[0].Parts[0].Text; got != "message" {
			t.Fatalf("unexpected prompt: %q", got)
		}
	}
}

func TestClientStopsAfterRetriesExhausted(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models.enqueue(fakeResponse{err: tempErr})
	models.enqueue(fakeResponse{err: tempErr})

	c := &Client{models: models, maxRetries: 2, logger: zap.NewNop()}

	_, err := c.GenerateContent(context.Background(), "gemini-pro", "", "msg")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	var apiErr genai.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	if len(models.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(models.calls))
	}
}

func TestClientDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}})

	c := &Client{models: models, maxRetries: 3, logger: zap.NewNop()}

	_, err := c.GenerateContent(context.Background(), "gemini-pro", "sys", "msg")
	if err == nil {
		t.Fatal("expected error when quota delay too long")
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}

	if len(*delays) != 0 {
		t.Fatalf("expected no sleep, got %v", *delays)
	}
}

func TestClientWaitsForShortQuotaDelay(t *testing.T) {
	delays := noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{
		Code:    http.StatusTooManyRequests,
		Message: "Please retry in 2.5s.",
	}})
	models.enqueue(fakeResponse{generate: textResponse(`{"keywords": []}`)})

	c := &Client{models: models, maxRetries: 3, logger: zap.NewNop()}

	if _, err := c.GenerateContent(context.Background(), "gemini-pro", "", "msg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*delays) != 1 || (*delays)[0] != 2500*time.Millisecond {
		t.Fatalf("expected quota delay of 2.5s, got %v", *delays)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	noSleep(t)

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusBadRequest, Message: "bad request"}})

	c := &Client{models: models, maxRetries: 3, logger: zap.NewNop()}

	if _, err := c.GenerateContent(context.Background(), "gemini-pro", "", "msg"); err == nil {
		t.Fatal("expected error")
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestClientStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	original := sleep
	sleep = func(ctx context.Context, _ time.Duration) error { return context.Canceled }
	defer func() { sleep = original }()

	models := &fakeModels{}
	models.enqueue(fakeResponse{err: genai.APIError{Code: http.StatusServiceUnavailable}})

	c := &Client{models: models, maxRetries: 3, logger: zap.NewNop()}

	_, err := c.GenerateContent(context.Background(), "gemini-pro", "", "msg")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClientRejectsEmptyPrompt(t *testing.T) {
	c := &Client{models: &fakeModels{}, maxRetries: 1, logger: zap.NewNop()}

	if _, err := c.GenerateContent(context.Background(), "gemini-pro", "", "  "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestClientEmptyResponseIsError(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(fakeResponse{generate: &genai.GenerateContentResponse{}})

	c := &Client{models: models, maxRetries: 1, logger: zap.NewNop()}

	_, err := c.GenerateContent(context.Background(), "gemini-pro", "", "msg")
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		message string
		want    time.Duration
		found   bool
	}{
		{message: "retry after 60 seconds", want: time.Minute, found: true},
		{message: "Please retry in 21.5s.", want: 21500 * time.Millisecond, found: true},
		{message: "quota exhausted", found: false},
	}

	for _, tt := range tests {
		got, found := parseRetryAfter(tt.message)
		if found != tt.found || got != tt.want {
			t.Fatalf("%q: expected (%s, %v), got (%s, %v)", tt.message, tt.want, tt.found, got, found)
		}
	}
}
