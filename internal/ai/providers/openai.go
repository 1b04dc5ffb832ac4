package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mprichard/swipebot/internal/config"
)

// OpenAIProvider drafts messages through the OpenAI chat completions API
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)
	return &OpenAIProvider{
		client: &client,
		model:  model,
	}
}

// Name returns the provider's gateway name
func (p *OpenAIProvider) Name() string {
	return config.ProviderOpenAI
}

// Generate sends a chat-completion message array and returns the text
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", classifyTransport(fmt.Errorf("failed to call OpenAI API: %w", err))
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("OpenAI returned no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
