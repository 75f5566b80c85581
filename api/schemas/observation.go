package schemas

import "time"

// -- Observation Schemas --

// QualityMode selects how much work the extractor performs per observation.
type QualityMode string

const (
	// QualityFast extracts the main content snippet only.
	QualityFast QualityMode = "fast"
	// QualityBalanced adds ranked chunks (capped at 30) and metrics.
	QualityBalanced QualityMode = "balanced"
	// QualityThorough raises the chunk cap to 50 and inventories images.
	QualityThorough QualityMode = "thorough"
)

// Known reports whether m is an accepted quality mode.
func (m QualityMode) Known() bool {
	switch m {
	case QualityFast, QualityBalanced, QualityThorough:
		return true
	}
	return false
}

// Observation is the bounded textual snapshot of document state handed to the
// model each decision round.
type Observation struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Selection string `json:"selection,omitempty"`
	// Content is the main content snippet, already bounded by the
	// extractor's excerpt limit.
	Content string          `json:"content"`
	Chunks  []ContentChunk  `json:"chunks,omitempty"`
	Metrics *ContentMetrics `json:"metrics,omitempty"`
	// Markup is a trimmed structural outline of the page, bounded
	// separately from Content.
	Markup   string            `json:"markup,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Images   []ImageCandidate  `json:"images,omitempty"`
	// ContentHash fingerprints the normalized content for change
	// detection between observations of the same (tab, url).
	ContentHash string      `json:"content_hash"`
	ExtractedAt time.Time   `json:"extracted_at"`
	Budget      TokenBudget `json:"budget"`
}

// ChunkType classifies a content chunk for priority assignment.
type ChunkType string

const (
	ChunkHeading   ChunkType = "heading"
	ChunkParagraph ChunkType = "paragraph"
	ChunkCode      ChunkType = "code"
	ChunkList      ChunkType = "list"
	ChunkQuote     ChunkType = "quote"
)

// ContentChunk is one ranked piece of document content.
type ContentChunk struct {
	Type ChunkType `json:"type"`
	// Level is the heading level (1-6) for heading chunks, zero otherwise.
	Level int `json:"level,omitempty"`
	// Index is the chunk's ordinal among chunks of its type, in document
	// order. Paragraph priority decays with it.
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Priority int    `json:"priority"`
	Tokens   int    `json:"tokens"`
}

// ContentMetrics carries the heuristic 0-100 suitability scores plus the raw
// counters they were derived from.
type ContentMetrics struct {
	Quality     int `json:"quality"`
	Readability int `json:"readability"`
	Density     int `json:"density"`

	Paragraphs    int     `json:"paragraphs"`
	Headings      int     `json:"headings"`
	Words         int     `json:"words"`
	Links         int     `json:"links"`
	CodeBlocks    int     `json:"code_blocks"`
	ClutterCount  int     `json:"clutter_count"`
	HasMain       bool    `json:"has_main"`
	HasLandmarks  bool    `json:"has_landmarks"`
	HasList       bool    `json:"has_list"`
	AvgWordLength float64 `json:"avg_word_length"`
}

// TokenBudget is the per-component token accounting for an observation.
// Total always equals the sum of the named components.
type TokenBudget struct {
	Content int `json:"content"`
	Chunks  int `json:"chunks"`
	Markup  int `json:"markup"`
	Total   int `json:"total"`
}

// ImageRegion locates an image within the page's landmark structure.
type ImageRegion string

const (
	RegionMain   ImageRegion = "main"
	RegionHeader ImageRegion = "header"
	RegionFooter ImageRegion = "footer"
	RegionNav    ImageRegion = "nav"
	RegionOther  ImageRegion = "other"
)

// ImageCandidate is one image scored for downstream OCR selection. Only
// candidates scoring above the eligibility floor are reported.
type ImageCandidate struct {
	Src        string      `json:"src"`
	Alt        string      `json:"alt,omitempty"`
	Score      int         `json:"score"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	InFigure   bool        `json:"in_figure,omitempty"`
	HasCaption bool        `json:"has_caption,omitempty"`
	Region     ImageRegion `json:"region,omitempty"`
}
