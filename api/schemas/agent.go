package schemas

import (
	"fmt"
	"strings"
	"time"
)

// -- Run Schemas --

// RunStatus describes the lifecycle state of an agent run.
// Transitions are one directional out of StatusRunning. Pausing is a side
// flag on the controller, not a state the run re-enters from; a paused run
// lands on StatusStopped at the next loop check.
type RunStatus string

const (
	StatusIdle     RunStatus = "idle"
	StatusRunning  RunStatus = "running"
	StatusPaused   RunStatus = "paused"
	StatusDone     RunStatus = "done"
	StatusStopped  RunStatus = "stopped"
	StatusErrored  RunStatus = "errored"
	StatusTimedOut RunStatus = "timed_out"
)

// Terminal reports whether the status ends a run. Paused is not terminal on
// its own; the controller converts it into a stop at the next loop check.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusStopped, StatusErrored, StatusTimedOut:
		return true
	}
	return false
}

// Run is one end-to-end execution of the agent for a single task. It is owned
// and mutated exclusively by the controller.
type Run struct {
	ID        string        `json:"id"`
	Task      string        `json:"task"`
	Steps     []Step        `json:"steps"`
	MaxSteps  int           `json:"max_steps"`
	StartedAt time.Time     `json:"started_at"`
	Timeout   time.Duration `json:"timeout"`
	Status    RunStatus     `json:"status"`
	// StopReason is a human readable explanation for non-errored terminal
	// states ("max steps", "paused", "stopped by user").
	StopReason string `json:"stop_reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// StepCount returns the number of recorded steps. It always equals
// len(Steps); the counter is never tracked separately.
func (r *Run) StepCount() int { return len(r.Steps) }

// Step is one decision+action+result triple within a run. A step is immutable
// once its result has been attached.
type Step struct {
	ID        int           `json:"id"`
	RunID     string        `json:"run_id"`
	Thought   string        `json:"thought"`
	Action    Action        `json:"action"`
	Result    *ActionResult `json:"result,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// -- Action Schemas --

// ActionType enumerates the action vocabulary the model may choose from.
type ActionType string

const (
	// ActionNavigate loads a new URL. Never resolved in-document; the
	// controller routes it through a privileged tab-level navigation.
	ActionNavigate ActionType = "navigate"
	// ActionClick clicks the element matching Selector (or Text as a
	// free-form fallback target).
	ActionClick ActionType = "click"
	// ActionTypeText types Text into the element matching Selector,
	// optionally clearing the existing value first.
	ActionTypeText ActionType = "type"
	// ActionScroll scrolls to Selector when given, else the viewport by a
	// fixed offset in Direction (default down).
	ActionScroll ActionType = "scroll"
	// ActionWait waits for Selector to appear, or sleeps TimeoutMs when no
	// selector is given.
	ActionWait ActionType = "wait"
	// ActionExtract reads textContent, or Attribute when named, from the
	// element matching Selector.
	ActionExtract ActionType = "extract"
	// ActionHover dispatches mouseenter/mouseover on the matched element.
	ActionHover ActionType = "hover"
	// ActionSelect picks the option matching Value (by value or label
	// substring) inside the matched select element.
	ActionSelect ActionType = "select"
	// ActionPressKey dispatches a synthetic keydown on the active element.
	ActionPressKey ActionType = "press_key"
	// ActionDone terminates the run successfully, carrying Summary.
	ActionDone ActionType = "done"
)

// KnownActionTypes lists every accepted action type, in the order they are
// described to the model.
var KnownActionTypes = []ActionType{
	ActionNavigate, ActionClick, ActionTypeText, ActionScroll, ActionWait,
	ActionExtract, ActionHover, ActionSelect, ActionPressKey, ActionDone,
}

// Known reports whether t is part of the accepted action vocabulary.
func (t ActionType) Known() bool {
	for _, k := range KnownActionTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Action is the tagged variant describing one model-chosen interaction. The
// Type field selects which of the remaining fields are meaningful; unused
// fields stay zero and are omitted from serialized form.
type Action struct {
	Type       ActionType `json:"type"`
	URL        string     `json:"url,omitempty"`
	Selector   string     `json:"selector,omitempty"`
	Text       string     `json:"text,omitempty"`
	Value      string     `json:"value,omitempty"`
	Key        string     `json:"key,omitempty"`
	Attribute  string     `json:"attribute,omitempty"`
	Direction  string     `json:"direction,omitempty"`
	TimeoutMs  int        `json:"timeout_ms,omitempty"`
	ClearFirst bool       `json:"clear_first,omitempty"`
	Summary    string     `json:"summary,omitempty"`
}

// Target returns the resolver target for element-bound actions: the explicit
// selector when present, otherwise the free-form text hint.
func (a Action) Target() string {
	if a.Selector != "" {
		return a.Selector
	}
	return a.Text
}

// Validate checks per-type required fields. It is the schema half of strict
// decision validation; a failure here surfaces as a parse error, never as a
// silently patched action.
func (a Action) Validate() error {
	if !a.Type.Known() {
		return fmt.Errorf("unknown action type %q", string(a.Type))
	}
	switch a.Type {
	case ActionNavigate:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("navigate action requires url")
		}
	case ActionClick, ActionHover, ActionExtract:
		if a.Target() == "" {
			return fmt.Errorf("%s action requires selector or text", a.Type)
		}
	case ActionTypeText:
		if a.Selector == "" {
			return fmt.Errorf("type action requires selector")
		}
		if a.Text == "" {
			return fmt.Errorf("type action requires text")
		}
	case ActionSelect:
		if a.Selector == "" || a.Value == "" {
			return fmt.Errorf("select action requires selector and value")
		}
	case ActionPressKey:
		if a.Key == "" {
			return fmt.Errorf("press_key action requires key")
		}
	}
	// scroll, wait, and done have no required fields.
	return nil
}

// Standardized error codes for machine readable failure reporting back to
// the model.
const (
	ErrCodeElementNotFound   = "ELEMENT_NOT_FOUND"
	ErrCodeTimeoutError      = "TIMEOUT_ERROR"
	ErrCodeNavigationError   = "NAVIGATION_ERROR"
	ErrCodeUnknownActionType = "UNKNOWN_ACTION_TYPE"
	ErrCodeExecutionFailure  = "EXECUTION_FAILURE"
)

// ActionResult is the uniform outcome every action handler returns.
type ActionResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	// ErrorCode carries a machine readable failure class alongside the
	// human readable Error string.
	ErrorCode string `json:"error_code,omitempty"`
	Data      any    `json:"data,omitempty"`
	// NavigationRequired flags that the action must be completed by a
	// privileged tab-level navigation to URL; no in-document work was done.
	NavigationRequired bool   `json:"navigation_required,omitempty"`
	URL                string `json:"url,omitempty"`
	ScreenshotRef      string `json:"screenshot_ref,omitempty"`
}

// Summary renders a one line success/failure description suitable for the
// step history shown to the model.
func (r ActionResult) Summary() string {
	if r.Success {
		if s, ok := r.Data.(string); ok && s != "" {
			return "ok: " + s
		}
		return "ok"
	}
	if r.Error != "" {
		return "failed: " + r.Error
	}
	return "failed"
}

// -- Decision Schema --

// Decision is the structured reply the model must produce each round: its
// reasoning, exactly one action, and an optional explicit completion flag.
type Decision struct {
	Thought string `json:"thought"`
	Action  Action `json:"action"`
	Done    bool   `json:"done,omitempty"`
}

// IsDone reports run completion: either the explicit flag or a done action.
func (d Decision) IsDone() bool {
	return d.Done || d.Action.Type == ActionDone
}
