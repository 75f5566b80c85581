// -- internal/dom/document.go --

// Package dom defines the query capability the resolver and executor operate
// against, plus an in-process HTML implementation of it. Keeping the
// interface minimal is what lets the heuristic layers (scoring, strategy
// chain, action handlers) run against parsed HTML in tests and against a live
// browser session in production.
package dom

import (
	"context"
	"time"
)

// Element is one addressable node of the document.
type Element interface {
	// Tag returns the lowercase element name.
	Tag() string
	// Text returns the normalized (whitespace-collapsed) text content.
	Text() string
	// Attr returns the value of the named attribute and whether it exists.
	Attr(name string) (string, bool)
	// Attributes returns a copy of all attributes.
	Attributes() map[string]string
	// Role returns the effective ARIA role: the explicit role attribute,
	// or the implicit role for common tags (a[href] -> link, button ->
	// button, option -> option).
	Role() string
	// Visible reports the visibility predicate: a non-zero box, and not
	// display:none / visibility:hidden / opacity 0.
	Visible() bool
	// Locator returns a stable, unique selector for re-addressing the
	// element across calls (an id-anchored XPath).
	Locator() string
}

// Event is one synthetic interaction recorded against a document. The live
// backend dispatches real events instead; the HTML backend records them so
// tests can assert the executor's dispatch behavior.
type Event struct {
	Kind   string
	Target string
	Detail string
}

// Actions is the mutation surface of a document. Every method takes ctx
// because the live backend performs round-trips to the browser.
type Actions interface {
	Click(ctx context.Context, el Element) error
	Hover(ctx context.Context, el Element) error
	// SetValue writes text into an input-like element, optionally clearing
	// it first, and dispatches synthetic input and change events.
	SetValue(ctx context.Context, el Element, text string, clear bool) error
	// SelectOption picks the option matching value by exact value or label
	// substring, then dispatches change.
	SelectOption(ctx context.Context, el Element, value string) error
	// PressKey dispatches a keydown for key on the active element.
	PressKey(ctx context.Context, key string) error
	ScrollBy(ctx context.Context, dx, dy int) error
	ScrollIntoView(ctx context.Context, el Element) error
	// Highlight applies a transient outline to the element, restored after d.
	Highlight(ctx context.Context, el Element, d time.Duration) error
	// Navigate loads rawURL. On the HTML backend this only records intent;
	// real navigation is the session's concern.
	Navigate(ctx context.Context, rawURL string) error
}

// Document is the query capability handed to the resolver, executor, and
// observation source.
type Document interface {
	Actions

	URL() string
	Title() string
	// SelectionText returns the user's current text selection, if any.
	SelectionText() string
	// Select runs a CSS selector query, in document order.
	Select(selector string) ([]Element, error)
	// Candidates returns the interactive and text-bearing elements the
	// resolver's text strategies scan, in document order.
	Candidates() ([]Element, error)
	// ActiveElement returns the element holding focus, if any.
	ActiveElement() (Element, bool)
	// InputDescendant returns the first input-like descendant of el, used
	// when a type action resolves to a container rather than a field.
	InputDescendant(el Element) (Element, bool)
	// HTML renders the current document markup.
	HTML() (string, error)
	// Mutations returns a coalesced signal channel that receives after any
	// document change. Waiters use it to re-probe promptly.
	Mutations() <-chan struct{}
}

// InputLike reports whether el accepts typed text directly: inputs (other
// than the button-ish types), textareas, selects, and contenteditable hosts.
func InputLike(el Element) bool {
	switch el.Tag() {
	case "textarea", "select":
		return true
	case "input":
		t, _ := el.Attr("type")
		switch t {
		case "button", "submit", "reset", "image", "hidden":
			return false
		}
		return true
	}
	if v, ok := el.Attr("contenteditable"); ok && v != "false" {
		return true
	}
	return false
}
