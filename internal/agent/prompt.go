// internal/agent/prompt.go
package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/json-iterator/go"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

const (
	// historyWindow bounds how many prior steps the model sees; older
	// steps are dropped to keep the prompt size stable.
	historyWindow = 5
	excerptLimit  = 4000
	markupLimit   = 6000
)

// systemPrompt is the capability description sent on every round: the
// action vocabulary and the reply contract the parser enforces.
const systemPrompt = `You are a web automation agent operating a live browser tab on behalf of a user.
Each round you receive the user's task, the current page state, and your previous steps.
You reply with exactly one action to advance the task.

Available actions:
- navigate: load a URL in the current tab. Fields: url.
- click: click one element. Fields: selector (CSS) or text (visible label).
- type: type into an input field. Fields: selector, text, clear_first (optional, clears the field first).
- scroll: scroll to an element or by one viewport step. Fields: selector (optional), direction ("up"|"down"|"left"|"right", optional, default "down").
- wait: wait for an element to appear, or pause. Fields: selector (optional), timeout_ms (optional).
- extract: read text or an attribute from an element. Fields: selector or text, attribute (optional).
- hover: move the pointer onto an element. Fields: selector or text.
- select: choose a dropdown option by value or visible label. Fields: selector, value.
- press_key: press one key on the focused element. Fields: key (e.g. "Enter").
- done: finish the task. Fields: summary (your final answer or result).

Reply with a single JSON object and nothing else:
{"thought": "<brief reasoning for this action>", "action": {"type": "<action type>", ...}, "done": <true only when the task is complete>}

Rules:
- Exactly one action per reply. "thought" is required.
- Prefer selectors you saw in the page markup; fall back to visible text.
- If a previous step failed with "Element not found", choose a different target, or scroll or wait before retrying.
- Use "done" as soon as the task is achieved and put the answer in "summary".`

// buildDecisionRequest assembles the full prompt for one decision round.
func buildDecisionRequest(task string, obs *schemas.Observation, steps []schemas.Step) DecisionRequest {
	return DecisionRequest{
		System:    systemPrompt,
		User:      buildUserPrompt(task, obs, steps),
		ForceJSON: true,
	}
}

func buildUserPrompt(task string, obs *schemas.Observation, steps []schemas.Step) string {
	var b strings.Builder
	b.WriteString("Task: ")
	b.WriteString(task)
	b.WriteString("\n")

	if obs != nil {
		b.WriteString("\nPage:\n")
		fmt.Fprintf(&b, "  URL: %s\n", obs.URL)
		fmt.Fprintf(&b, "  Title: %s\n", obs.Title)
		if obs.Selection != "" {
			fmt.Fprintf(&b, "  Selected text: %s\n", clip(obs.Selection, excerptLimit))
		}
		if obs.Content != "" {
			b.WriteString("\nContent:\n")
			b.WriteString(clip(obs.Content, excerptLimit))
			b.WriteString("\n")
		}
		if obs.Markup != "" {
			b.WriteString("\nInteractive markup:\n")
			b.WriteString(clip(obs.Markup, markupLimit))
			b.WriteString("\n")
		}
	}

	if recent := lastSteps(steps, historyWindow); len(recent) > 0 {
		b.WriteString("\nPrevious steps (most recent last):\n")
		for _, step := range recent {
			fmt.Fprintf(&b, "Step %d\n", step.ID)
			fmt.Fprintf(&b, "  Thought: %s\n", step.Thought)
			if actionJSON, err := json.Marshal(step.Action); err == nil {
				fmt.Fprintf(&b, "  Action: %s\n", actionJSON)
			}
			if step.Result != nil {
				fmt.Fprintf(&b, "  Result: %s\n", step.Result.Summary())
			}
		}
	}

	b.WriteString("\nDecide the next action.")
	return b.String()
}

// lastSteps returns the trailing window of steps, newest last.
func lastSteps(steps []schemas.Step, n int) []schemas.Step {
	if len(steps) <= n {
		return steps
	}
	return steps[len(steps)-n:]
}

// clip truncates s to at most limit bytes without splitting a rune.
func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
