// internal/agent/interfaces.go
package agent

import (
	"context"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// The controller owns these interfaces rather than importing the concrete
// packages, so it can be exercised against mocks and so the provider,
// executor, and extraction layers never depend on the loop that drives
// them.

// DecisionRequest is one fully rendered decision prompt. The controller
// builds it; the gateway only transports it.
type DecisionRequest struct {
	// System is the capability description: the action vocabulary and the
	// required reply shape.
	System string
	// User carries the task, the serialized observation, and the recent
	// step history.
	User string
	// ForceJSON asks providers that support constrained output to return
	// a bare JSON object.
	ForceJSON bool
}

// Gateway produces a raw model reply for a decision request. Retries for
// transient failures happen behind this interface; an error returned here
// is final and aborts the run.
type Gateway interface {
	Decide(ctx context.Context, req DecisionRequest) (string, error)
}

// Executor runs one action against the live document. Execute never
// returns an error; failures are folded into the ActionResult so the
// model sees them on the next round. Navigate is the privileged tab-level
// escape hatch for actions the document itself cannot perform.
type Executor interface {
	Execute(ctx context.Context, action schemas.Action) schemas.ActionResult
	Navigate(ctx context.Context, rawURL string) schemas.ActionResult
}

// ObserveOptions selects how the next observation is produced.
type ObserveOptions struct {
	// ForceRefresh bypasses the observation cache.
	ForceRefresh bool
	// Quality picks the extraction depth: "fast", "balanced" or
	// "thorough". Empty means the configured default.
	Quality string
}

// ObservationSource supplies the page state each decision round starts
// from. Implementations return an error when the page is inaccessible,
// which aborts the run.
type ObservationSource interface {
	Observe(ctx context.Context, opts ObserveOptions) (*schemas.Observation, error)
}
