// -- internal/executor/executor.go --

// Package executor dispatches typed agent actions against a resolved
// document element, producing a uniform ActionResult per action and
// transient visual feedback on the affected element.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/dom"
	"github.com/mvoss9k/tabpilot/internal/poll"
	"github.com/mvoss9k/tabpilot/internal/resolver"
)

const (
	// resolveTimeout bounds how long an action waits for its target to
	// appear before failing.
	resolveTimeout = 3000 * time.Millisecond
	// highlightFor is how long the feedback outline stays applied.
	highlightFor = 800 * time.Millisecond
	// scrollStep is the viewport offset for selector-less scroll actions.
	scrollStep = 600
	// defaultSleep is the wait action's pause when no duration is given.
	defaultSleep = 1000 * time.Millisecond
)

// Handler executes one action kind.
type Handler func(ctx context.Context, action schemas.Action) schemas.ActionResult

// Registry maps action types to handlers and dispatches decisions against
// one document.
type Registry struct {
	doc      dom.Document
	resolver *resolver.Resolver
	logger   *zap.Logger
	handlers map[schemas.ActionType]Handler

	resolveWait time.Duration
}

// New builds a Registry bound to doc, resolving targets through res.
func New(doc dom.Document, res *resolver.Resolver, logger *zap.Logger) *Registry {
	r := &Registry{
		doc:         doc,
		resolver:    res,
		logger:      logger.Named("executor"),
		handlers:    make(map[schemas.ActionType]Handler),
		resolveWait: resolveTimeout,
	}
	r.registerHandlers()
	return r
}

func (r *Registry) registerHandlers() {
	r.handlers[schemas.ActionNavigate] = r.handleNavigate
	r.handlers[schemas.ActionClick] = r.handleClick
	r.handlers[schemas.ActionTypeText] = r.handleType
	r.handlers[schemas.ActionScroll] = r.handleScroll
	r.handlers[schemas.ActionWait] = r.handleWait
	r.handlers[schemas.ActionExtract] = r.handleExtract
	r.handlers[schemas.ActionHover] = r.handleHover
	r.handlers[schemas.ActionSelect] = r.handleSelect
	r.handlers[schemas.ActionPressKey] = r.handlePressKey
	r.handlers[schemas.ActionDone] = r.handleDone
}

// Execute dispatches the action to its handler. Unknown kinds come back as
// a structured failure, and handler panics are recovered into one rather
// than unwinding the run loop.
func (r *Registry) Execute(ctx context.Context, action schemas.Action) (result schemas.ActionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("action handler panicked",
				zap.String("type", string(action.Type)),
				zap.Any("panic", rec))
			result = failure(fmt.Sprintf("action handler panicked: %v", rec), schemas.ErrCodeExecutionFailure)
		}
	}()

	handler, ok := r.handlers[action.Type]
	if !ok {
		return failure(fmt.Sprintf("unknown action type: %q", string(action.Type)), schemas.ErrCodeUnknownActionType)
	}

	r.logger.Debug("executing action",
		zap.String("type", string(action.Type)),
		zap.String("target", action.Target()))
	result = handler(ctx, action)
	if !result.Success {
		r.logger.Warn("action failed",
			zap.String("type", string(action.Type)),
			zap.String("target", action.Target()),
			zap.String("error", result.Error))
	}
	return result
}

// Navigate performs the privileged tab-level navigation the navigate
// handler defers. The URL is normalized the same way.
func (r *Registry) Navigate(ctx context.Context, rawURL string) schemas.ActionResult {
	target := NormalizeURL(rawURL)
	if target == "" {
		return failure("navigate requires a url", schemas.ErrCodeNavigationError)
	}
	if err := r.doc.Navigate(ctx, target); err != nil {
		return failure(fmt.Sprintf("navigation failed: %v", err), schemas.ErrCodeNavigationError)
	}
	return schemas.ActionResult{Success: true, URL: target}
}

// NormalizeURL prefixes https:// when the scheme is missing.
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		return "https://" + s
	}
	return s
}

// -- Handlers --

// handleNavigate never touches the document: it hands the normalized URL
// back for the privileged tab-level call.
func (r *Registry) handleNavigate(_ context.Context, action schemas.Action) schemas.ActionResult {
	target := NormalizeURL(action.URL)
	if target == "" {
		return failure("navigate requires a url", schemas.ErrCodeNavigationError)
	}
	return schemas.ActionResult{Success: true, NavigationRequired: true, URL: target}
}

func (r *Registry) handleClick(ctx context.Context, action schemas.Action) schemas.ActionResult {
	el, fail := r.resolve(ctx, action.Target())
	if fail != nil {
		return *fail
	}
	r.feedback(ctx, el)
	if err := r.doc.Click(ctx, el); err != nil {
		return failure(fmt.Sprintf("click failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

func (r *Registry) handleHover(ctx context.Context, action schemas.Action) schemas.ActionResult {
	el, fail := r.resolve(ctx, action.Target())
	if fail != nil {
		return *fail
	}
	r.feedback(ctx, el)
	if err := r.doc.Hover(ctx, el); err != nil {
		return failure(fmt.Sprintf("hover failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

// handleType resolves the selector and types into it, falling back to the
// first input-like descendant when the model picked a container. Unlike
// click, the Text field here is the content to type, never a target hint.
func (r *Registry) handleType(ctx context.Context, action schemas.Action) schemas.ActionResult {
	el, fail := r.resolve(ctx, action.Selector)
	if fail != nil {
		return *fail
	}
	if !dom.InputLike(el) {
		inner, ok := r.doc.InputDescendant(el)
		if !ok {
			return failure("No input element found: "+action.Selector, schemas.ErrCodeElementNotFound)
		}
		el = inner
	}
	r.feedback(ctx, el)
	if err := r.doc.SetValue(ctx, el, action.Text, action.ClearFirst); err != nil {
		return failure(fmt.Sprintf("type failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

func (r *Registry) handleSelect(ctx context.Context, action schemas.Action) schemas.ActionResult {
	el, fail := r.resolve(ctx, action.Target())
	if fail != nil {
		return *fail
	}
	r.feedback(ctx, el)
	if err := r.doc.SelectOption(ctx, el, action.Value); err != nil {
		return failure(fmt.Sprintf("select failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

// handleExtract reads the target's text content, or a named attribute when
// the action asks for one.
func (r *Registry) handleExtract(ctx context.Context, action schemas.Action) schemas.ActionResult {
	el, fail := r.resolve(ctx, action.Target())
	if fail != nil {
		return *fail
	}
	r.feedback(ctx, el)
	if action.Attribute != "" {
		v, _ := el.Attr(action.Attribute)
		return schemas.ActionResult{Success: true, Data: v}
	}
	return schemas.ActionResult{Success: true, Data: el.Text()}
}

// handleScroll scrolls a resolved target into view, or the viewport by a
// fixed step in the requested direction when no target is given.
func (r *Registry) handleScroll(ctx context.Context, action schemas.Action) schemas.ActionResult {
	if target := action.Target(); target != "" {
		el, fail := r.resolve(ctx, target)
		if fail != nil {
			return *fail
		}
		if err := r.doc.ScrollIntoView(ctx, el); err != nil {
			return failure(fmt.Sprintf("scroll failed: %v", err), schemas.ErrCodeExecutionFailure)
		}
		return success()
	}

	dx, dy := 0, scrollStep
	switch strings.ToLower(action.Direction) {
	case "", "down":
	case "up":
		dx, dy = 0, -scrollStep
	case "left":
		dx, dy = -scrollStep, 0
	case "right":
		dx, dy = scrollStep, 0
	default:
		return failure(fmt.Sprintf("unknown scroll direction: %q", action.Direction), schemas.ErrCodeExecutionFailure)
	}
	if err := r.doc.ScrollBy(ctx, dx, dy); err != nil {
		return failure(fmt.Sprintf("scroll failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

// handleWait waits for a target to appear, or just sleeps when the action
// names none.
func (r *Registry) handleWait(ctx context.Context, action schemas.Action) schemas.ActionResult {
	timeout := time.Duration(action.TimeoutMs) * time.Millisecond

	if target := action.Target(); target != "" {
		if timeout <= 0 {
			timeout = r.resolveWait
		}
		if m := r.resolver.WaitFor(ctx, r.doc, target, timeout); m == nil {
			return failure("Timed out waiting for element: "+target, schemas.ErrCodeTimeoutError)
		}
		return success()
	}

	if timeout <= 0 {
		timeout = defaultSleep
	}
	if err := poll.Sleep(ctx, timeout); err != nil {
		return failure("wait cancelled", schemas.ErrCodeExecutionFailure)
	}
	return success()
}

func (r *Registry) handlePressKey(ctx context.Context, action schemas.Action) schemas.ActionResult {
	if err := r.doc.PressKey(ctx, action.Key); err != nil {
		return failure(fmt.Sprintf("press_key failed: %v", err), schemas.ErrCodeExecutionFailure)
	}
	return success()
}

// handleDone is terminal and always succeeds; the summary rides along as
// the result data.
func (r *Registry) handleDone(_ context.Context, action schemas.Action) schemas.ActionResult {
	return schemas.ActionResult{Success: true, Data: action.Summary}
}

// -- helpers --

// resolve waits up to the resolution timeout for the target, producing the
// uniform not-found failure on a miss.
func (r *Registry) resolve(ctx context.Context, target string) (dom.Element, *schemas.ActionResult) {
	m := r.resolver.WaitFor(ctx, r.doc, target, r.resolveWait)
	if m == nil {
		fail := failure("Element not found: "+target, schemas.ErrCodeElementNotFound)
		return nil, &fail
	}
	return m.Element, nil
}

// feedback applies the transient highlight and scrolls the element into
// view. Feedback is cosmetic; failures are logged, not propagated.
func (r *Registry) feedback(ctx context.Context, el dom.Element) {
	if err := r.doc.Highlight(ctx, el, highlightFor); err != nil {
		r.logger.Debug("highlight failed", zap.Error(err))
	}
	if err := r.doc.ScrollIntoView(ctx, el); err != nil {
		r.logger.Debug("scroll into view failed", zap.Error(err))
	}
}

func success() schemas.ActionResult {
	return schemas.ActionResult{Success: true}
}

func failure(msg, code string) schemas.ActionResult {
	return schemas.ActionResult{Success: false, Error: msg, ErrorCode: code}
}
