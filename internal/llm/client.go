// Package llm provides inference-provider clients and the escalation tier
// of the detection pipeline. Escalation is optional, budget-gated, and
// soft-fails: no provider error ever propagates past this package as an
// exception-style failure.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CompletionResponse is the raw result of one provider call.
type CompletionResponse struct {
	ResultJSON string
	TokensUsed int64
}

// Client defines the interface for inference providers.
type Client interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (CompletionResponse, error)
}

// Config holds configuration for provider clients and the escalator.
type Config struct {
	Provider      string
	APIKey        string
	Model         string
	PromptVersion string
	Temperature   float64
	MaxTokens     int
	RateLimit     int
	Timeout       time.Duration
}

// NewClient creates a provider client based on the configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic":
		return newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// ProviderID identifies the provider and model pair for feedback accounting.
func (c Config) ProviderID() string {
	return strings.ToLower(c.Provider) + "/" + c.Model
}
