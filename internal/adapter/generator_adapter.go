package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	m "failpass.dev/pkg/failpass/internal/model"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// ErrEmptyCompletion is returned when a backend answers with no content.
var ErrEmptyCompletion = errors.New("backend returned no content")

// Generator is the single capability every generation backend offers.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorConfig selects and configures a backend.
type GeneratorConfig struct {
	Backend      m.Backend
	APIKey       string
	BaseURL      string
	Temperature  float32
	RPS          float64
	MockResponse string
}

// NewGenerator builds the generator for cfg.Backend, rate limited when RPS > 0.
func NewGenerator(ctx context.Context, cfg GeneratorConfig) (Generator, error) {
	var (
		gen Generator
		err error
	)

	switch cfg.Backend.Provider() {
	case m.ProviderMock:
		gen, err = NewFileMockGenerator(cfg.MockResponse)
	case m.ProviderOpenAI:
		gen, err = NewOpenAIGenerator(cfg.Backend, cfg.APIKey, cfg.BaseURL, cfg.Temperature)
	case m.ProviderGroq:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}

		gen, err = NewOpenAIGenerator(cfg.Backend, cfg.APIKey, baseURL, cfg.Temperature)
	case m.ProviderGemini:
		gen, err = NewGeminiGenerator(ctx, cfg.Backend, cfg.APIKey, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}

	if err != nil {
		return nil, err
	}

	if cfg.RPS > 0 {
		gen = NewRateLimitedGenerator(gen, cfg.RPS)
	}

	return gen, nil
}

// OpenAIGenerator talks to OpenAI or any OpenAI-compatible endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       m.Backend
	temperature float32
}

// NewOpenAIGenerator constructs an OpenAIGenerator. An empty baseURL uses OpenAI.
func NewOpenAIGenerator(model m.Backend, apiKey, baseURL string, temperature float32) (*OpenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing API key for %s", model)
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
	}, nil
}

// Generate implements Generator.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: string(g.model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	if g.model.SupportsTemperature() {
		req.Temperature = g.temperature
	}

	slog.Debug("Querying chat completion", "model", g.model, "promptBytes", len(prompt))

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("Chat completion failed", "model", g.model, "error", err)
		return "", fmt.Errorf("chat completion with %s: %w", g.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	slog.Debug("Received chat completion", "model", g.model, "finishReason", resp.Choices[0].FinishReason)

	return resp.Choices[0].Message.Content, nil
}

// GeminiGenerator talks to the Gemini API.
type GeminiGenerator struct {
	client      *genai.Client
	model       m.Backend
	temperature float32
}

// NewGeminiGenerator constructs a GeminiGenerator.
func NewGeminiGenerator(ctx context.Context, model m.Backend, apiKey string, temperature float32) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("missing API key for %s", model)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       model,
		temperature: temperature,
	}, nil
}

// Generate implements Generator.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := g.temperature

	resp, err := g.client.Models.GenerateContent(
		ctx,
		string(g.model),
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		slog.Error("Gemini generation failed", "model", g.model, "error", err)
		return "", fmt.Errorf("generate with %s: %w", g.model, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyCompletion
	}

	var sb strings.Builder

	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}

	if sb.Len() == 0 {
		return "", ErrEmptyCompletion
	}

	return sb.String(), nil
}

// MockGenerator replays canned responses in order, repeating the last one.
type MockGenerator struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

// NewMockGenerator constructs a MockGenerator.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{responses: responses}
}

// NewFileMockGenerator replays the content of path.
func NewFileMockGenerator(path string) (*MockGenerator, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("mock backend needs a response file")
	}

	// #nosec G304 - path is an operator-provided fixture
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mock response: %w", err)
	}

	return NewMockGenerator(string(content)), nil
}

// Generate implements Generator.
func (g *MockGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.responses) == 0 {
		return "", ErrEmptyCompletion
	}

	idx := g.calls
	if idx >= len(g.responses) {
		idx = len(g.responses) - 1
	}

	g.calls++

	return g.responses[idx], nil
}

// Calls returns how many times Generate was invoked.
func (g *MockGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.calls
}

// RateLimitedGenerator throttles an inner generator.
type RateLimitedGenerator struct {
	inner   Generator
	limiter *rate.Limiter
}

// NewRateLimitedGenerator allows rps requests per second with a burst of one.
func NewRateLimitedGenerator(inner Generator, rps float64) *RateLimitedGenerator {
	return &RateLimitedGenerator{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Generate implements Generator.
func (g *RateLimitedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	return g.inner.Generate(ctx, prompt)
}
