// -- internal/resolver/resolver.go --

// Package resolver maps a free-form or CSS target string to one visible
// element via an ordered strategy chain, with mutation-aware waiting for
// targets that have not rendered yet.
package resolver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/dom"
	"github.com/mvoss9k/tabpilot/internal/poll"
)

// interactiveRoles are the roles strategy 8 accepts alongside a text
// substring match.
var interactiveRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"tab":      true,
	"menuitem": true,
	"option":   true,
}

// Match is a successful resolution: the element plus which strategy found
// it and the fuzzy score when one applied.
type Match struct {
	Element  dom.Element
	Strategy string
	Score    float64
}

// Resolver runs the strategy chain against a document.
type Resolver struct {
	visibleOnly bool
	interval    time.Duration
	logger      *zap.Logger
}

// New builds a Resolver. VisibleOnly gates every candidate through the
// visibility predicate; PollInterval paces WaitFor re-resolution.
func New(cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Resolver{
		visibleOnly: cfg.VisibleOnly,
		interval:    interval,
		logger:      logger.Named("resolver"),
	}
}

// Resolve runs the strategies in order and returns the first hit, or nil
// when nothing matches. Order: literal selector, exact text, fuzzy text,
// aria-label, placeholder, title, data attributes, role plus text. Within
// a strategy the first eligible element in document order wins; the fuzzy
// strategy picks the highest score instead.
func (r *Resolver) Resolve(doc dom.Document, target string) *Match {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil
	}

	if looksLikeSelector(target) {
		if m := r.bySelector(doc, target); m != nil {
			return r.found(m)
		}
	}

	pool, err := doc.Candidates()
	if err != nil {
		r.logger.Warn("candidate scan failed", zap.Error(err))
		return nil
	}
	pool = r.eligible(pool)

	if m := r.byExactText(pool, target); m != nil {
		return r.found(m)
	}
	if m := r.byFuzzyText(pool, target); m != nil {
		return r.found(m)
	}
	for _, s := range []struct {
		name string
		attr string
	}{
		{"aria-label", "aria-label"},
		{"placeholder", "placeholder"},
		{"title", "title"},
	} {
		if m := r.byAttrSubstring(pool, target, s.name, s.attr); m != nil {
			return r.found(m)
		}
	}
	if m := r.byDataAttr(doc, target); m != nil {
		return r.found(m)
	}
	if m := r.byRoleText(doc, target); m != nil {
		return r.found(m)
	}

	r.logger.Debug("no strategy matched", zap.String("target", target))
	return nil
}

// WaitFor resolves with patience: one immediate attempt, one synchronous
// retry, then re-resolution on document mutation (or the poll interval)
// until the timeout. Returns nil when time runs out.
func (r *Resolver) WaitFor(ctx context.Context, doc dom.Document, target string, timeout time.Duration) *Match {
	if m := r.Resolve(doc, target); m != nil {
		return m
	}

	var match *Match
	probe := func(context.Context) (bool, error) {
		match = r.Resolve(doc, target)
		return match != nil, nil
	}
	if err := poll.Until(ctx, timeout, r.interval, doc.Mutations(), probe); err != nil {
		r.logger.Debug("wait for element timed out",
			zap.String("target", target),
			zap.Duration("timeout", timeout))
		return nil
	}
	return match
}

func (r *Resolver) found(m *Match) *Match {
	r.logger.Debug("element resolved",
		zap.String("strategy", m.Strategy),
		zap.Float64("score", m.Score),
		zap.String("locator", m.Element.Locator()))
	return m
}

// eligible applies the visibility gate to a candidate list.
func (r *Resolver) eligible(els []dom.Element) []dom.Element {
	if !r.visibleOnly {
		return els
	}
	out := els[:0]
	for _, el := range els {
		if el.Visible() {
			out = append(out, el)
		}
	}
	return out
}

// bySelector treats target as a literal CSS selector. Parse failures and
// empty result sets are strategy misses, not errors.
func (r *Resolver) bySelector(doc dom.Document, target string) *Match {
	els, err := doc.Select(target)
	if err != nil {
		return nil
	}
	for _, el := range r.eligible(els) {
		return &Match{Element: el, Strategy: "selector"}
	}
	return nil
}

func (r *Resolver) byExactText(pool []dom.Element, target string) *Match {
	for _, el := range pool {
		if el.Text() == target {
			return &Match{Element: el, Strategy: "exact-text"}
		}
	}
	return nil
}

// byFuzzyText scores every candidate's text and takes the best positive
// score; document order breaks ties.
func (r *Resolver) byFuzzyText(pool []dom.Element, target string) *Match {
	var best *Match
	for _, el := range pool {
		score := fuzzyScore(target, el.Text())
		if score <= 0 {
			continue
		}
		if best == nil || score > best.Score {
			best = &Match{Element: el, Strategy: "fuzzy-text", Score: score}
		}
	}
	return best
}

func (r *Resolver) byAttrSubstring(pool []dom.Element, target, strategy, attr string) *Match {
	for _, el := range pool {
		if v, ok := el.Attr(attr); ok && v != "" && containsFold(v, target) {
			return &Match{Element: el, Strategy: strategy}
		}
	}
	return nil
}

// byDataAttr matches target as a substring of any data-* attribute value.
// CSS cannot wildcard attribute names, so this strategy walks every
// element.
func (r *Resolver) byDataAttr(doc dom.Document, target string) *Match {
	els, err := doc.Select("*")
	if err != nil {
		return nil
	}
	for _, el := range r.eligible(els) {
		for name, v := range el.Attributes() {
			if strings.HasPrefix(name, "data-") && v != "" && containsFold(v, target) {
				return &Match{Element: el, Strategy: "data-attr"}
			}
		}
	}
	return nil
}

// byRoleText matches elements carrying an interactive role, explicit or
// implicit, whose text contains the target. This is the catch-all for ARIA
// widgets built from elements the candidate pool does not cover.
func (r *Resolver) byRoleText(doc dom.Document, target string) *Match {
	els, err := doc.Select("*")
	if err != nil {
		return nil
	}
	for _, el := range r.eligible(els) {
		if interactiveRoles[el.Role()] && containsFold(el.Text(), target) {
			return &Match{Element: el, Strategy: "role-text"}
		}
	}
	return nil
}
