// internal/llmclient/client_test.go
package llmclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/config"
)

func testLLMConfig(provider config.LLMProvider) config.LLMConfig {
	return config.LLMConfig{
		Provider:    provider,
		Model:       "test-model",
		APIKey:      "test-key",
		APITimeout:  5 * time.Second,
		Temperature: 0.2,
		MaxTokens:   1024,
		// Keep retry waits negligible: 1ms, 2ms, 4ms.
		BackoffBase: time.Millisecond,
	}
}

func testRequest() agent.DecisionRequest {
	return agent.DecisionRequest{
		System:    "You operate a web page.",
		User:      "Task: find the pricing page.",
		ForceJSON: true,
	}
}

// openAIReply writes a minimal successful chat-completions response.
func openAIReply(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q},"finish_reason":"stop"}],
		"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`, text)
}

func setupOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testLLMConfig(config.ProviderOpenAI)
	cfg.Endpoint = server.URL
	client, err := NewOpenAIClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestFactory(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		client, err := New(testLLMConfig(config.ProviderOpenAI), zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &OpenAIClient{}, client)
	})

	t.Run("gemini", func(t *testing.T) {
		client, err := New(testLLMConfig(config.ProviderGemini), zap.NewNop())
		require.NoError(t, err)
		assert.IsType(t, &GeminiClient{}, client)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testLLMConfig("oracle")
		_, err := New(cfg, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "oracle")
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := testLLMConfig(config.ProviderOpenAI)
		cfg.APIKey = ""
		_, err := New(cfg, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestOpenAIDefaultEndpoint(t *testing.T) {
	client, err := NewOpenAIClient(testLLMConfig(config.ProviderOpenAI), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, defaultOpenAIEndpoint, client.endpoint)
}

func TestGeminiDefaultEndpoint(t *testing.T) {
	client, err := NewGeminiClient(testLLMConfig(config.ProviderGemini), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t,
		"https://generativelanguage.googleapis.com/v1beta/models/test-model:generateContent",
		client.endpoint)
}

func TestOpenAIDecide(t *testing.T) {
	var captured chatRequest
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		openAIReply(w, `{"thought":"done"}`)
	})

	reply, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"thought":"done"}`, reply)

	assert.Equal(t, "test-model", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You operate a web page.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestOpenAIDecidePlainText(t *testing.T) {
	var captured chatRequest
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		openAIReply(w, "ok")
	})

	req := testRequest()
	req.ForceJSON = false
	_, err := client.Decide(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, captured.ResponseFormat, "response_format only sent when JSON is forced")
}

func TestGeminiDecide(t *testing.T) {
	var captured geminiRequest
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"parts":[{"text":"{\"thought\":\"done\"}"}],"role":"model"},
			"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":6,"totalTokenCount":18}}`)
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)

	cfg := testLLMConfig(config.ProviderGemini)
	cfg.Endpoint = server.URL
	client, err := NewGeminiClient(cfg, zap.NewNop())
	require.NoError(t, err)

	reply, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"thought":"done"}`, reply)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You operate a web page.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "application/json", captured.GenerationConfig.ResponseMimeType)
}

func TestDecideRetriesTransient(t *testing.T) {
	var attempts int32
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		openAIReply(w, "recovered")
	})

	start := time.Now()
	reply, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	// Two failures wait base then base*2: at least 3ms on the clock.
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
}

func TestDecideRetriesRateLimit(t *testing.T) {
	var attempts int32
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		openAIReply(w, "ok")
	})

	_, err := client.Decide(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDecideAuthNotRetried(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var attempts int32
			client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&attempts, 1)
				w.WriteHeader(status)
			})

			_, err := client.Decide(context.Background(), testRequest())
			require.Error(t, err)

			var gerr *agent.GatewayError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, agent.GatewayAuth, gerr.Class)
			assert.Equal(t, status, gerr.Status)
			assert.False(t, gerr.Retryable())
			assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "auth failures must not be retried")
		})
	}
}

func TestDecideClientErrorNotRetried(t *testing.T) {
	var attempts int32
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := client.Decide(context.Background(), testRequest())
	var gerr *agent.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, agent.GatewayClient, gerr.Class)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestDecideExhaustsRetries(t *testing.T) {
	var attempts int32
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Decide(context.Background(), testRequest())
	require.Error(t, err)

	var gerr *agent.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, agent.GatewayTransient, gerr.Class)
	assert.Equal(t, http.StatusInternalServerError, gerr.Status)
	assert.Equal(t, int32(1+maxRetries), atomic.LoadInt32(&attempts))
}

func TestDecideCancelled(t *testing.T) {
	release := make(chan struct{})
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		openAIReply(w, "too late")
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.Decide(ctx, testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestDecideEmptyChoices(t *testing.T) {
	client := setupOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[]}`)
	})

	_, err := client.Decide(context.Background(), testRequest())
	var gerr *agent.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, agent.GatewayClient, gerr.Class)
}

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status    int
		class     agent.GatewayErrorClass
		retryable bool
	}{
		{http.StatusUnauthorized, agent.GatewayAuth, false},
		{http.StatusForbidden, agent.GatewayAuth, false},
		{http.StatusTooManyRequests, agent.GatewayRateLimit, true},
		{http.StatusInternalServerError, agent.GatewayTransient, true},
		{http.StatusBadGateway, agent.GatewayTransient, true},
		{http.StatusServiceUnavailable, agent.GatewayTransient, true},
		{http.StatusBadRequest, agent.GatewayClient, false},
		{http.StatusNotFound, agent.GatewayClient, false},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			gerr := classifyStatus(tc.status, []byte("details"))
			assert.Equal(t, tc.class, gerr.Class)
			assert.Equal(t, tc.status, gerr.Status)
			assert.Equal(t, tc.retryable, gerr.Retryable())
		})
	}
}

func TestRateLimiterConfiguration(t *testing.T) {
	cfg := testLLMConfig(config.ProviderOpenAI)
	assert.Nil(t, newTransport(cfg, zap.NewNop()).limiter, "limiter off by default")

	cfg.RequestsPerMinute = 60
	assert.NotNil(t, newTransport(cfg, zap.NewNop()).limiter)
}
