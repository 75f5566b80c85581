// internal/browser/session.go

// Package browser provides the live page backends behind dom.Document: a
// chromedp session driving a real Chrome tab, and a static HTTP loader for
// browserless runs. It also carries the observation source that feeds the
// controller from either backend.
package browser

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/dom"
)

const (
	defaultMaxSessions = 2
	defaultNavTimeout  = 45 * time.Second
	// opTimeout bounds a single CDP round-trip so a stale locator or a
	// wedged page fails the one action instead of stalling the run.
	opTimeout    = 10 * time.Second
	startTimeout = 30 * time.Second
)

// slots bounds concurrently open sessions process-wide. The pool is sized
// from the first session's configuration.
var (
	slotsOnce sync.Once
	slots     *semaphore.Weighted
)

func sessionSlots(limit int) *semaphore.Weighted {
	slotsOnce.Do(func() {
		if limit <= 0 {
			limit = defaultMaxSessions
		}
		slots = semaphore.NewWeighted(int64(limit))
	})
	return slots
}

// Session drives one Chrome tab and exposes it as a dom.Document. Queries
// and the visibility predicate are evaluated in page JS; actions go through
// CDP. A Session serves one run at a time and is not safe for concurrent
// use beyond the Document contract.
type Session struct {
	id     string
	cfg    config.BrowserConfig
	logger *zap.Logger

	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	release     func()

	mut chan struct{}

	mu        sync.Mutex
	lastURL   string
	closeOnce sync.Once
}

var _ dom.Document = (*Session)(nil)

// NewSession launches a browser tab, blocking until a session slot is free.
// The caller owns the returned Session and must Close it.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	if err := sessionSlots(cfg.MaxSessions).Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a session slot: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(cfg)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          uuid.NewString(),
		cfg:         cfg,
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		release:     func() { slots.Release(1) },
		mut:         make(chan struct{}, 1),
	}
	s.logger = logger.Named("browser").With(zap.String("session_id", s.id))

	chromedp.ListenTarget(tabCtx, s.onTargetEvent)

	startCtx, cancel := context.WithTimeout(tabCtx, startTimeout)
	defer cancel()
	tasks := chromedp.Tasks{s.installMutationBridge()}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		tasks = append(tasks, chromedp.EmulateViewport(int64(cfg.ViewportWidth), int64(cfg.ViewportHeight)))
	}
	if err := chromedp.Run(startCtx, tasks); err != nil {
		s.teardown()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	s.logger.Info("session started",
		zap.Bool("headless", cfg.Headless),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight))
	return s, nil
}

// allocatorOptions translates the browser configuration into Chrome launch
// flags, starting from the chromedp defaults.
func allocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("disable-extensions", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if runtime.GOOS == "linux" {
		// Required for containerized environments.
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight))
	}
	return opts
}

// ID identifies the session; observation cache entries are keyed by it.
func (s *Session) ID() string { return s.id }

// Close shuts the tab and browser down and frees the session slot.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("graceful browser shutdown failed", zap.Error(err))
		}
		s.teardown()
		s.logger.Info("session closed")
	})
}

func (s *Session) teardown() {
	s.tabCancel()
	s.allocCancel()
	s.release()
}

// eval runs CDP actions on the session's own lifetime, for the Document
// query surface which carries no context.
func (s *Session) eval(actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, opTimeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// run runs CDP actions bounded by both the caller's context and the
// session lifetime.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	opCtx, tcancel := context.WithTimeout(opCtx, opTimeout)
	defer tcancel()
	return chromedp.Run(opCtx, actions...)
}

// combineContext derives from primary, which carries the CDP target, and
// additionally cancels when secondary ends.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)
	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()
	return combined, cancel
}

func (s *Session) URL() string {
	var url string
	if err := s.eval(chromedp.Location(&url)); err != nil {
		s.logger.Debug("location read failed", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastURL
	}
	s.mu.Lock()
	s.lastURL = url
	s.mu.Unlock()
	return url
}

func (s *Session) Title() string {
	var title string
	if err := s.eval(chromedp.Title(&title)); err != nil {
		s.logger.Debug("title read failed", zap.Error(err))
		return ""
	}
	return title
}

func (s *Session) SelectionText() string {
	var text string
	if err := s.eval(chromedp.Evaluate(selectionScript, &text)); err != nil {
		s.logger.Debug("selection read failed", zap.Error(err))
		return ""
	}
	return text
}

// HTML renders the live document. Failure here is how an inaccessible page
// (crashed tab, chrome-internal URL) surfaces to the observation source.
func (s *Session) HTML() (string, error) {
	var markup string
	if err := s.eval(chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("page is not accessible: %w", err)
	}
	return markup, nil
}

func (s *Session) Mutations() <-chan struct{} {
	return s.mut
}
