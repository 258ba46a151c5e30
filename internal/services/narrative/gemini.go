package narrative

import (
	"context"
	"fmt"
	"time"

	domsvc "CoinPulse/internal/domain/service"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiModel completes prompts with the Gemini API.
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
}

var _ domsvc.TextModel = (*GeminiModel)(nil)

type GeminiOption func(*GeminiModel)

func WithModel(name string) GeminiOption {
	return func(g *GeminiModel) {
		if name != "" {
			g.model = name
		}
	}
}

func WithTemperature(t float32) GeminiOption {
	return func(g *GeminiModel) { g.temperature = t }
}

func WithMaxOutputTokens(n int32) GeminiOption {
	return func(g *GeminiModel) { g.maxTokens = n }
}

// WithTimeout bounds each completion call.
func WithTimeout(d time.Duration) GeminiOption {
	return func(g *GeminiModel) { g.timeout = d }
}

func NewGeminiModel(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	g := &GeminiModel{client: client, model: DefaultModel, temperature: 0.7, maxTokens: 1024}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GeminiModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	return resp.Text(), nil
}
