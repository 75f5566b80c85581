// internal/browser/mutations.go
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// mutationBinding is the CDP binding name the page-side observer reports
// through. It must be a valid JS identifier.
const mutationBinding = "tabpilotMutation"

// installMutationBridge exposes the binding and plants the observer script
// on every future document plus the current one. The script self-guards,
// so evaluating it twice is harmless.
func (s *Session) installMutationBridge() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := runtime.AddBinding(mutationBinding).Do(ctx); err != nil {
			return fmt.Errorf("failed to expose mutation binding: %w", err)
		}
		if _, err := page.AddScriptToEvaluateOnNewDocument(mutationScript).Do(ctx); err != nil {
			return fmt.Errorf("failed to install mutation observer: %w", err)
		}
		return chromedp.Evaluate(mutationScript, nil).Do(ctx)
	})
}

// onTargetEvent forwards observer reports into the coalescing mutation
// channel. Dropped sends are fine; one pending signal is enough to wake a
// waiter.
func (s *Session) onTargetEvent(ev interface{}) {
	binding, ok := ev.(*runtime.EventBindingCalled)
	if !ok || binding.Name != mutationBinding {
		return
	}
	select {
	case s.mut <- struct{}{}:
	default:
	}
}
