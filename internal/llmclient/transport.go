// internal/llmclient/transport.go
package llmclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/config"
)

// maxRetries bounds the attempts after the first: a request is sent at
// most four times.
const maxRetries = 3

// errorBodyLimit caps how much of a provider error body is carried into
// the returned error and the logs.
const errorBodyLimit = 512

// transport is the retrying HTTP layer both provider adapters share.
// Classification and backoff live here so the adapters only build
// requests and parse payloads.
type transport struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	base       time.Duration
	logger     *zap.Logger
}

func newTransport(cfg config.LLMConfig, logger *zap.Logger) *transport {
	t := &transport{
		httpClient: &http.Client{Timeout: cfg.APITimeout},
		base:       cfg.BackoffBase,
		logger:     logger,
	}
	if t.base <= 0 {
		t.base = time.Second
	}
	if cfg.RequestsPerMinute > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerMinute/60), 1)
	}
	return t
}

// roundTrip sends the request produced by build and returns the response
// body. Attempt n waits base * 2^n before retrying; only rate-limit and
// transient classes are retried, and cancellation is surfaced as the
// context's own error, never retried.
func (t *transport) roundTrip(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = t.base
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	var body []byte
	attempt := 0
	op := func() error {
		attempt++
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		req, err := build()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		start := time.Now()
		resp, err := t.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			t.logger.Warn("provider request failed, will retry",
				zap.Int("attempt", attempt), zap.Error(err))
			return &agent.GatewayError{Class: agent.GatewayTransient, Err: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return &agent.GatewayError{Class: agent.GatewayTransient, Err: fmt.Errorf("read response: %w", err)}
		}
		if resp.StatusCode != http.StatusOK {
			gerr := classifyStatus(resp.StatusCode, raw)
			t.logger.Warn("provider returned error status",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Bool("retryable", gerr.Retryable()))
			if !gerr.Retryable() {
				return backoff.Permanent(gerr)
			}
			return gerr
		}

		t.logger.Debug("provider request complete",
			zap.Int("attempt", attempt),
			zap.Duration("duration", time.Since(start)))
		body = raw
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// classifyStatus maps an HTTP status to a gateway error class: 401/403
// auth, 429 rate limit, 5xx transient, anything else a client error.
func classifyStatus(status int, body []byte) *agent.GatewayError {
	if len(body) > errorBodyLimit {
		body = body[:errorBodyLimit]
	}
	gerr := &agent.GatewayError{
		Status: status,
		Err:    fmt.Errorf("%s: %s", http.StatusText(status), body),
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		gerr.Class = agent.GatewayAuth
	case status == http.StatusTooManyRequests:
		gerr.Class = agent.GatewayRateLimit
	case status >= http.StatusInternalServerError:
		gerr.Class = agent.GatewayTransient
	default:
		gerr.Class = agent.GatewayClient
	}
	return gerr
}
