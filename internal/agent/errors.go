// internal/agent/errors.go
package agent

import (
	"fmt"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// This file defines the typed errors the controller dispatches on. Using
// typed errors lets the loop classify failures with errors.As instead of
// string matching: gateway and parse failures abort the run, limit and
// abort conditions stop it gracefully, and step-level failures are folded
// into the step's ActionResult and never surface here.

// GatewayErrorClass buckets a failed decision request by its cause.
type GatewayErrorClass string

const (
	GatewayAuth      GatewayErrorClass = "auth"
	GatewayRateLimit GatewayErrorClass = "rate_limit"
	GatewayTransient GatewayErrorClass = "transient"
	GatewayClient    GatewayErrorClass = "client"
)

// GatewayError reports a decision request that failed after the gateway
// exhausted its own retry policy. Status carries the HTTP status when one
// was received, zero for transport-level failures.
type GatewayError struct {
	Class  GatewayErrorClass
	Status int
	Err    error
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s error (status %d): %v", e.Class, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s error: %v", e.Class, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the gateway may try the request again.
// Authentication and client errors never are.
func (e *GatewayError) Retryable() bool {
	return e.Class == GatewayRateLimit || e.Class == GatewayTransient
}

// ParseError reports a model reply that could not be validated into a
// Decision. The raw reply is kept for the run's error message and logs.
type ParseError struct {
	Reason string
	Raw    string
}

func (e *ParseError) Error() string {
	return "invalid model reply: " + e.Reason
}

// ResolutionError reports a target string no resolver strategy could map
// to a visible element. It is recorded on the failing step; the run
// continues.
type ResolutionError struct {
	Target string
}

func (e *ResolutionError) Error() string {
	return "Element not found: " + e.Target
}

// ExecutionError reports a handler-level failure for an action whose
// target (if any) did resolve.
type ExecutionError struct {
	Code    string
	Message string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LimitError reports an exhausted run budget. Limit is "steps" or "time".
type LimitError struct {
	Limit string
}

func (e *LimitError) Error() string {
	return "run limit reached: " + e.Limit
}

// UserAbort reports an explicit stop or pause by the user.
type UserAbort struct {
	Reason string
}

func (e *UserAbort) Error() string {
	return "run aborted: " + e.Reason
}

// resultError lifts a failed ActionResult back into the taxonomy so step
// failures log with a classified type. Misses and wait timeouts are
// resolution failures; everything else is an execution failure.
func resultError(res schemas.ActionResult, target string) error {
	switch res.ErrorCode {
	case schemas.ErrCodeElementNotFound, schemas.ErrCodeTimeoutError:
		return &ResolutionError{Target: target}
	default:
		return &ExecutionError{Code: res.ErrorCode, Message: res.Error}
	}
}
