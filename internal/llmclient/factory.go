// internal/llmclient/factory.go

// Package llmclient implements the model gateway: provider adapters over
// plain HTTP with shared retry, classification, and throttling. Adapters
// satisfy the controller's Gateway interface; nothing here knows about
// runs or steps.
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/config"
)

// Client is what a provider adapter exposes. It is structurally identical
// to agent.Gateway, so any Client wires straight into the controller.
type Client interface {
	Decide(ctx context.Context, req agent.DecisionRequest) (string, error)
}

var _ agent.Gateway = (Client)(nil)

var (
	_ Client = (*OpenAIClient)(nil)
	_ Client = (*GeminiClient)(nil)
)

// New builds the adapter for the configured provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, logger)
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q, supported: [%s %s]",
			cfg.Provider, config.ProviderOpenAI, config.ProviderGemini)
	}
}
