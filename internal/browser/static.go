// internal/browser/static.go
package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/dom"
)

const (
	staticFetchTimeout = 30 * time.Second
	// maxStaticBody caps how much of a response the static loader reads.
	maxStaticBody = 5 << 20
)

// StaticSession is the browserless backend: it fetches pages over plain
// HTTP and serves them as parsed HTML documents. Interactions mutate the
// parsed tree only; navigation refetches. Pages that require scripting
// will look inert here, which is the documented trade-off of static runs.
type StaticSession struct {
	id     string
	client *http.Client
	ua     string
	logger *zap.Logger

	mu  sync.RWMutex
	doc *dom.HTMLDocument
}

var _ dom.Document = (*StaticSession)(nil)

// StaticLoad fetches rawURL and returns a session positioned on it.
func StaticLoad(ctx context.Context, rawURL, userAgent string, logger *zap.Logger) (*StaticSession, error) {
	s := &StaticSession{
		id:     uuid.NewString(),
		client: &http.Client{Timeout: staticFetchTimeout},
		ua:     userAgent,
		logger: logger.Named("browser.static"),
	}
	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

func (s *StaticSession) fetch(ctx context.Context, rawURL string) (*dom.HTMLDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if s.ua != "" {
		req.Header.Set("User-Agent", s.ua)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("page is not accessible: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("page is not accessible: %s returned status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read page body: %w", err)
	}

	// Redirects may have moved us; report the final location.
	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	doc, err := dom.Parse(string(body), finalURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	s.logger.Debug("page loaded",
		zap.String("url", finalURL),
		zap.Int("bytes", len(body)))
	return doc, nil
}

// ID identifies the session; observation cache entries are keyed by it.
func (s *StaticSession) ID() string { return s.id }

func (s *StaticSession) current() *dom.HTMLDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Navigate fetches the target and replaces the current document. Waiters
// holding the previous document's mutation channel re-probe on their poll
// interval instead.
func (s *StaticSession) Navigate(ctx context.Context, rawURL string) error {
	doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *StaticSession) URL() string           { return s.current().URL() }
func (s *StaticSession) Title() string         { return s.current().Title() }
func (s *StaticSession) SelectionText() string { return s.current().SelectionText() }

func (s *StaticSession) Select(selector string) ([]dom.Element, error) {
	return s.current().Select(selector)
}

func (s *StaticSession) Candidates() ([]dom.Element, error) {
	return s.current().Candidates()
}

func (s *StaticSession) ActiveElement() (dom.Element, bool) {
	return s.current().ActiveElement()
}

func (s *StaticSession) InputDescendant(el dom.Element) (dom.Element, bool) {
	return s.current().InputDescendant(el)
}

func (s *StaticSession) HTML() (string, error) {
	return s.current().HTML()
}

func (s *StaticSession) Mutations() <-chan struct{} {
	return s.current().Mutations()
}

func (s *StaticSession) Click(ctx context.Context, el dom.Element) error {
	return s.current().Click(ctx, el)
}

func (s *StaticSession) Hover(ctx context.Context, el dom.Element) error {
	return s.current().Hover(ctx, el)
}

func (s *StaticSession) SetValue(ctx context.Context, el dom.Element, text string, clear bool) error {
	return s.current().SetValue(ctx, el, text, clear)
}

func (s *StaticSession) SelectOption(ctx context.Context, el dom.Element, value string) error {
	return s.current().SelectOption(ctx, el, value)
}

func (s *StaticSession) PressKey(ctx context.Context, key string) error {
	return s.current().PressKey(ctx, key)
}

func (s *StaticSession) ScrollBy(ctx context.Context, dx, dy int) error {
	return s.current().ScrollBy(ctx, dx, dy)
}

func (s *StaticSession) ScrollIntoView(ctx context.Context, el dom.Element) error {
	return s.current().ScrollIntoView(ctx, el)
}

func (s *StaticSession) Highlight(ctx context.Context, el dom.Element, d time.Duration) error {
	return s.current().Highlight(ctx, el, d)
}
