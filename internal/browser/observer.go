// internal/browser/observer.go
package browser

import (
	"context"

	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/agent"
	"github.com/mvoss9k/tabpilot/internal/cache"
	"github.com/mvoss9k/tabpilot/internal/dom"
	"github.com/mvoss9k/tabpilot/internal/extract"
)

// Observer produces observations for the controller from a document,
// serving cached snapshots when the caller allows it. It works the same
// over the live and static backends.
type Observer struct {
	doc    dom.Document
	ext    *extract.Extractor
	store  *cache.Cache
	tabID  string
	logger *zap.Logger
}

var _ agent.ObservationSource = (*Observer)(nil)

// NewObserver wires a document to the extractor and cache. tabID scopes
// cache entries to the session so parallel sessions never share snapshots.
func NewObserver(doc dom.Document, ext *extract.Extractor, store *cache.Cache, tabID string, logger *zap.Logger) *Observer {
	return &Observer{
		doc:    doc,
		ext:    ext,
		store:  store,
		tabID:  tabID,
		logger: logger.Named("observer"),
	}
}

// Observe returns the current page state. Without ForceRefresh a live
// cache entry for the page is returned as-is; otherwise a fresh extraction
// runs and replaces it.
func (o *Observer) Observe(ctx context.Context, opts agent.ObserveOptions) (*schemas.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	url := o.doc.URL()
	if !opts.ForceRefresh {
		if hit := o.store.Get(url, o.tabID, 0); hit != nil {
			o.logger.Debug("observation served from cache", zap.String("url", url))
			return hit, nil
		}
	}

	obs, err := o.ext.Extract(o.doc, extract.Options{Quality: schemas.QualityMode(opts.Quality)})
	if err != nil {
		return nil, err
	}
	o.store.Set(obs, o.tabID, 0)
	o.logger.Debug("observation extracted",
		zap.String("url", obs.URL),
		zap.String("content_hash", obs.ContentHash),
		zap.Int("content_len", len(obs.Content)))
	return obs, nil
}
