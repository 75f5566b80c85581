// -- internal/extract/extractor.go --

// Package extract turns a live document into a bounded, prioritized textual
// observation: main content, ranked chunks packed into a token budget,
// heuristic quality scores, a structural markup outline, and OCR image
// candidates.
package extract

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/dom"
)

const (
	// excerptLimit bounds Observation.Content.
	excerptLimit = 4000
	// markupLimit bounds the structural outline.
	markupLimit = 6000
	// outlineTextLimit bounds the text shown per outline line.
	outlineTextLimit = 80
)

// noiseSelector is stripped before any text measurement.
const noiseSelector = "script, style, noscript, template, iframe"

// furnitureSelector is additionally stripped from the content root when no
// main container is recognized.
const furnitureSelector = "nav, header, footer, aside"

// Extractor builds Observations from documents.
type Extractor struct {
	cfg    config.ExtractorConfig
	logger *zap.Logger
}

// New builds an Extractor with the configured defaults.
func New(cfg config.ExtractorConfig, logger *zap.Logger) *Extractor {
	return &Extractor{cfg: cfg, logger: logger.Named("extractor")}
}

// Options override the configured defaults for one extraction.
type Options struct {
	// Quality selects the extraction depth; empty uses the configured mode.
	Quality schemas.QualityMode
	// TokenBudget caps the packed chunk tokens; non-positive uses the
	// configured budget.
	TokenBudget int
}

// Extract builds an Observation from the document's current state.
func (e *Extractor) Extract(doc dom.Document, opts Options) (*schemas.Observation, error) {
	mode := opts.Quality
	if mode == "" {
		mode = e.cfg.Quality
	}
	if !mode.Known() {
		mode = schemas.QualityBalanced
	}
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = e.cfg.TokenBudget
	}

	markup, err := doc.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read document markup: %w", err)
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document markup: %w", err)
	}
	gq.Find(noiseSelector).Remove()

	main := mainContent(gq)
	root := main
	if root == nil {
		root = gq.Find("body").Clone()
		root.Find(furnitureSelector).Remove()
	}
	content := truncate(normalizeText(root.Text()), excerptLimit)

	metrics := measure(gq, main, content)
	score(metrics)

	obs := &schemas.Observation{
		URL:         doc.URL(),
		Title:       doc.Title(),
		Selection:   doc.SelectionText(),
		Content:     content,
		Metrics:     metrics,
		Metadata:    collectMetadata(gq),
		ContentHash: hashContent(content),
		ExtractedAt: time.Now(),
	}

	chunkTokens := 0
	if mode != schemas.QualityFast {
		limit := chunkCapBalanced
		if mode == schemas.QualityThorough {
			limit = chunkCapThorough
		}
		ranked := collectChunks(root, limit)
		obs.Chunks, chunkTokens = packChunks(ranked, budget)
		obs.Markup = buildOutline(gq)
	}
	if mode == schemas.QualityThorough {
		obs.Images = collectImages(gq, main, e.cfg.MaxImages)
	}

	obs.Budget = schemas.TokenBudget{
		Content: EstimateTokens(obs.Content),
		Chunks:  chunkTokens,
		Markup:  EstimateTokens(obs.Markup),
	}
	obs.Budget.Total = obs.Budget.Content + obs.Budget.Chunks + obs.Budget.Markup

	e.logger.Debug("observation extracted",
		zap.String("url", obs.URL),
		zap.String("mode", string(mode)),
		zap.Int("chunks", len(obs.Chunks)),
		zap.Int("images", len(obs.Images)),
		zap.Int("quality", metrics.Quality),
		zap.Int("budget_total", obs.Budget.Total))
	return obs, nil
}

// outlineSelector picks the elements worth showing the model as page
// structure: headings, landmarks, and everything interactive.
const outlineSelector = "h1, h2, h3, h4, h5, h6, a[href], button, input, " +
	"select, textarea, form, [role], [contenteditable='true']"

// outlineAttrs are carried into the outline when present, in this order.
var outlineAttrs = []string{
	"id", "name", "type", "role", "href", "placeholder", "aria-label",
	"title", "value",
}

// buildOutline renders a one-line-per-element structural sketch of the
// page, bounded by markupLimit.
func buildOutline(doc *goquery.Document) string {
	var b strings.Builder
	doc.Find(outlineSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		tag := goquery.NodeName(s)

		line := "<" + tag
		for _, name := range outlineAttrs {
			if v, ok := s.Attr(name); ok && v != "" {
				line += fmt.Sprintf(" %s=%q", name, truncate(v, outlineTextLimit))
			}
		}
		line += ">"
		if tag != "form" && tag != "select" {
			if text := truncate(normalizeText(s.Text()), outlineTextLimit); text != "" {
				line += text
			}
		}

		if b.Len()+len(line)+1 > markupLimit {
			return false
		}
		b.WriteString(line)
		b.WriteByte('\n')
		return true
	})
	return strings.TrimSuffix(b.String(), "\n")
}

// metadataNames are the meta tags worth surfacing to the model.
var metadataNames = map[string]bool{
	"description":    true,
	"keywords":       true,
	"author":         true,
	"og:title":       true,
	"og:description": true,
	"og:type":        true,
	"og:site_name":   true,
}

func collectMetadata(doc *goquery.Document) map[string]string {
	meta := map[string]string{}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := strings.ToLower(s.AttrOr("name", s.AttrOr("property", "")))
		if content := s.AttrOr("content", ""); metadataNames[name] && content != "" {
			meta[name] = content
		}
	})
	if lang, ok := doc.Find("html").Attr("lang"); ok && lang != "" {
		meta["lang"] = lang
	}
	if href, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && href != "" {
		meta["canonical"] = href
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// hashContent fingerprints normalized content as hex FNV-64a.
func hashContent(content string) string {
	h := fnv.New64a()
	h.Write([]byte(content))
	return fmt.Sprintf("%016x", h.Sum64())
}

// truncate cuts s at limit bytes, backing up to a rune boundary.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
