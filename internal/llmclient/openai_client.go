// internal/llmclient/openai_client.go
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/config"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAIClient speaks the chat-completions protocol, which covers the
// OpenAI API itself and the many self-hosted gateways compatible with it.
type OpenAIClient struct {
	endpoint  string
	apiKey    string
	model     string
	temp      float32
	maxTokens int
	transport *transport
	logger    *zap.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []chatMessage       `json:"messages"`
	Temperature    float32             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}
	log := logger.Named("llmclient.openai")
	return &OpenAIClient{
		endpoint:  endpoint,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		transport: newTransport(cfg, log),
		logger:    log,
	}, nil
}

// Decide sends the decision prompt and returns the raw reply text.
func (c *OpenAIClient) Decide(ctx context.Context, req agent.DecisionRequest) (string, error) {
	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: c.temp,
		MaxTokens:   c.maxTokens,
	}
	if req.ForceJSON {
		payload.ResponseFormat = &chatResponseFormat{Type: "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &agent.GatewayError{Class: agent.GatewayClient, Err: fmt.Errorf("marshal request: %w", err)}
	}

	raw, err := c.transport.roundTrip(ctx, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		return httpReq, nil
	})
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &agent.GatewayError{Class: agent.GatewayClient, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &agent.GatewayError{Class: agent.GatewayClient, Err: fmt.Errorf("reply contains no choices")}
	}

	c.logger.Debug("decision generated",
		zap.String("finish_reason", parsed.Choices[0].FinishReason),
		zap.Int("prompt_tokens", parsed.Usage.PromptTokens),
		zap.Int("completion_tokens", parsed.Usage.CompletionTokens),
		zap.Int("total_tokens", parsed.Usage.TotalTokens))

	return parsed.Choices[0].Message.Content, nil
}
