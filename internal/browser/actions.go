// internal/browser/actions.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/dom"
)

// namedKeys maps the action vocabulary's key names onto chromedp key
// chords. Single characters pass through untranslated.
var namedKeys = map[string]string{
	"enter":      kb.Enter,
	"tab":        kb.Tab,
	"escape":     kb.Escape,
	"esc":        kb.Escape,
	"backspace":  kb.Backspace,
	"delete":     kb.Delete,
	"arrowup":    kb.ArrowUp,
	"arrowdown":  kb.ArrowDown,
	"arrowleft":  kb.ArrowLeft,
	"arrowright": kb.ArrowRight,
	"home":       kb.Home,
	"end":        kb.End,
	"pageup":     kb.PageUp,
	"pagedown":   kb.PageDown,
	"space":      " ",
}

func keyChord(key string) (string, error) {
	if chord, ok := namedKeys[strings.ToLower(key)]; ok {
		return chord, nil
	}
	if utf8.RuneCountInString(key) == 1 {
		return key, nil
	}
	return "", fmt.Errorf("unsupported key %q", key)
}

// evalFound runs a locator-based snippet that reports whether the element
// still exists.
func (s *Session) evalFound(ctx context.Context, script string, el dom.Element) error {
	var found bool
	if err := s.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("stale element: %s", el.Locator())
	}
	return nil
}

func (s *Session) Click(ctx context.Context, el dom.Element) error {
	if err := s.run(ctx, chromedp.Click(el.Locator(), chromedp.BySearch)); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (s *Session) Hover(ctx context.Context, el dom.Element) error {
	if err := s.evalFound(ctx, hoverScript(el.Locator()), el); err != nil {
		return fmt.Errorf("hover failed: %w", err)
	}
	return nil
}

func (s *Session) SetValue(ctx context.Context, el dom.Element, text string, clear bool) error {
	if err := s.evalFound(ctx, setValueScript(el.Locator(), text, clear), el); err != nil {
		return fmt.Errorf("set value failed: %w", err)
	}
	return nil
}

func (s *Session) SelectOption(ctx context.Context, el dom.Element, value string) error {
	var failure string
	if err := s.run(ctx, chromedp.Evaluate(selectOptionScript(el.Locator(), value), &failure)); err != nil {
		return fmt.Errorf("select failed: %w", err)
	}
	if failure != "" {
		return fmt.Errorf("select failed: %s", failure)
	}
	return nil
}

// PressKey dispatches the key to whatever element holds focus, matching
// how a user presses a key after clicking into a field.
func (s *Session) PressKey(ctx context.Context, key string) error {
	chord, err := keyChord(key)
	if err != nil {
		return err
	}
	if err := s.run(ctx, chromedp.SendKeys("document.activeElement", chord, chromedp.ByJSPath)); err != nil {
		return fmt.Errorf("key press failed: %w", err)
	}
	return nil
}

func (s *Session) ScrollBy(ctx context.Context, dx, dy int) error {
	if err := s.run(ctx, chromedp.Evaluate(scrollByScript(dx, dy), nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

func (s *Session) ScrollIntoView(ctx context.Context, el dom.Element) error {
	if err := s.run(ctx, chromedp.ScrollIntoView(el.Locator(), chromedp.BySearch)); err != nil {
		return fmt.Errorf("scroll into view failed: %w", err)
	}
	return nil
}

// Highlight flashes an outline on the element. The restore timer runs in
// the page so the call returns immediately.
func (s *Session) Highlight(ctx context.Context, el dom.Element, d time.Duration) error {
	if err := s.evalFound(ctx, highlightScript(el.Locator(), d.Milliseconds()), el); err != nil {
		return fmt.Errorf("highlight failed: %w", err)
	}
	return nil
}

// Navigate loads rawURL and waits for the document to become ready. The
// controller adds its own settle pause on top.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	timeout := s.cfg.NavTimeout
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	navCtx, tcancel := context.WithTimeout(opCtx, timeout)
	defer tcancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if navCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return fmt.Errorf("navigation timed out after %s: %w", timeout, err)
		}
		return fmt.Errorf("navigation failed: %w", err)
	}

	s.mu.Lock()
	s.lastURL = rawURL
	s.mu.Unlock()
	s.logger.Debug("navigated", zap.String("url", rawURL))
	return nil
}
