// internal/browser/queries.go
package browser

import (
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/mvoss9k/tabpilot/internal/dom"
)

func (s *Session) runQuery(script string) (queryResult, error) {
	var res queryResult
	if err := s.eval(chromedp.Evaluate(script, &res)); err != nil {
		return queryResult{}, fmt.Errorf("page query failed: %w", err)
	}
	return res, nil
}

// Select runs a CSS query in the page. An unparsable selector returns an
// error; the resolver treats that as a strategy miss, not a failure.
func (s *Session) Select(selector string) ([]dom.Element, error) {
	res, err := s.runQuery(selectScript(selector))
	if err != nil {
		return nil, err
	}
	if res.Error != "" {
		return nil, fmt.Errorf("invalid selector %q: %s", selector, res.Error)
	}
	return wrapInfos(res.Elements), nil
}

// Candidates returns the interactive/text-bearing pool in document order,
// scanned with the same XPath union the HTML backend uses.
func (s *Session) Candidates() ([]dom.Element, error) {
	res, err := s.runQuery(candidatesScript())
	if err != nil {
		return nil, err
	}
	return wrapInfos(res.Elements), nil
}

func (s *Session) ActiveElement() (dom.Element, bool) {
	res, err := s.runQuery(activeElementScript())
	if err != nil || len(res.Elements) == 0 {
		return nil, false
	}
	return &remoteElement{info: res.Elements[0]}, true
}

// InputDescendant returns the first input-like descendant of el, if any.
// The executor falls back to it when a type action resolves to a container.
func (s *Session) InputDescendant(el dom.Element) (dom.Element, bool) {
	res, err := s.runQuery(inputDescendantScript(el.Locator()))
	if err != nil || len(res.Elements) == 0 {
		return nil, false
	}
	return &remoteElement{info: res.Elements[0]}, true
}
