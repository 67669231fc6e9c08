package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// openaiClient implements the Client interface using the OpenAI API.
type openaiClient struct {
	client      *openai.Client
	model       string
	temperature float64
}

// newOpenAIClient creates a new OpenAI provider client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}

	return &openaiClient{
		client:      openai.NewClient(cfg.APIKey),
		model:       model,
		temperature: temperature,
	}, nil
}

// Complete sends an extraction request to OpenAI.
func (c *openaiClient) Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(c.temperature),
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return CompletionResponse{TokensUsed: int64(resp.Usage.TotalTokens)}, fmt.Errorf("no choices in response")
	}

	return CompletionResponse{
		ResultJSON: resp.Choices[0].Message.Content,
		TokensUsed: int64(resp.Usage.TotalTokens),
	}, nil
}
