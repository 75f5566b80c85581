// internal/agent/parser.go
package agent

import (
	"strings"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/llmutil"
)

// ParseDecision turns a raw model reply into a validated Decision. The
// reply may be fenced or wrapped in prose; the first well-formed object is
// taken. Validation is strict: a blank thought, a missing action, an
// unknown action type, or absent per-type required fields all return a
// *ParseError. Nothing is silently patched.
func ParseDecision(raw string) (*schemas.Decision, error) {
	decision, err := llmutil.ParseJSONResponse[schemas.Decision](raw)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: raw}
	}
	if strings.TrimSpace(decision.Thought) == "" {
		return nil, &ParseError{Reason: "reply is missing thought", Raw: raw}
	}
	if err := decision.Action.Validate(); err != nil {
		return nil, &ParseError{Reason: err.Error(), Raw: raw}
	}
	return decision, nil
}
