package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/mprichard/swipebot/internal/config"
)

// GeminiProvider drafts messages through Google's Gemini API. Unlike the
// chat-completion providers it takes a single prompt string.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiProvider{client: client, model: model}, nil
}

// Name returns the provider's gateway name
func (p *GeminiProvider) Name() string {
	return config.ProviderGemini
}

// Generate sends the prompt and returns the response text
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), nil)
	if err != nil {
		return "", classifyTransport(fmt.Errorf("failed to call Gemini API: %w", err))
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini returned empty response")
	}
	return text, nil
}
