// internal/llmclient/gemini_client.go
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

const geminiEndpointFormat = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiClient targets the Google generateContent API.
type GeminiClient struct {
	endpoint  string
	apiKey    string
	temp      float32
	maxTokens int
	transport *transport
	logger    *zap.Logger
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature      float32 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func NewGeminiClient(cfg config.LLMConfig, logger *zap.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(geminiEndpointFormat, cfg.Model)
	}
	log := logger.Named("llmclient.gemini")
	return &GeminiClient{
		endpoint:  endpoint,
		apiKey:    cfg.APIKey,
		temp:      cfg.Temperature,
		maxTokens: cfg.MaxTokens,
		transport: newTransport(cfg, log),
		logger:    log,
	}, nil
}

// Decide sends the decision prompt and returns the raw reply text.
func (c *GeminiClient) Decide(ctx context.Context, req agent.DecisionRequest) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: req.User}}},
		},
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: req.System}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     c.temp,
			MaxOutputTokens: c.maxTokens,
		},
	}
	if req.ForceJSON {
		payload.GenerationConfig.ResponseMimeType = "application/json"
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
		httpReq.Header.Set("x-goog-api-key", c.apiKey)
		return httpReq, nil
	})
	if err != nil {
		return "", err
	}

	var parsed geminiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &agent.GatewayError{Class: agent.GatewayClient, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Candidates) == 0 {
		return "", &agent.GatewayError{Class: agent.GatewayClient, Err: fmt.Errorf("reply contains no candidates")}
	}
	candidate := parsed.Candidates[0]
	if len(candidate.Content.Parts) == 0 {
		return "", &agent.GatewayError{
			Class: agent.GatewayClient,
			Err:   fmt.Errorf("reply contains no content parts (finish reason %s)", candidate.FinishReason),
		}
	}

	c.logger.Debug("decision generated",
		zap.String("finish_reason", candidate.FinishReason),
		zap.Int("prompt_tokens", parsed.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", parsed.UsageMetadata.CandidatesTokenCount),
		zap.Int("total_tokens", parsed.UsageMetadata.TotalTokenCount))

	return candidate.Content.Parts[0].Text, nil
}
