// -- internal/extract/scoring.go --
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// mainSelectors are tried in order when locating the main content
// container; the first with enough text wins.
var mainSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	"#content",
	"#main",
	".content",
	".main-content",
	".post-content",
	".article-body",
	".entry-content",
}

// clutterSelectors match the ad/overlay furniture that crowds page content.
var clutterSelectors = []string{
	`[class*="advert"]`,
	`[id*="advert"]`,
	`[class*="banner"]`,
	`[class*="sponsor"]`,
	`[class*="promo"]`,
	`[class*="popup"]`,
	`[class*="modal"]`,
	`[class*="cookie"]`,
	`[class*="newsletter"]`,
	`[class*="sidebar"]`,
	`[id*="sidebar"]`,
}

const landmarkSelector = `nav, header, footer, main, aside, ` +
	`[role="navigation"], [role="banner"], [role="contentinfo"], [role="main"]`

// minMainChars is how much text a container needs before it counts as the
// page's main content.
const minMainChars = 200

// mainContent returns the first main-container selection with more than
// minMainChars of text, or nil when the page has no recognizable one.
func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if len(normalizeText(s.Text())) > minMainChars {
			return s
		}
	}
	return nil
}

// measure fills the raw counters scoring works from. The document should
// already have script/style noise removed.
func measure(doc *goquery.Document, main *goquery.Selection, content string) *schemas.ContentMetrics {
	m := &schemas.ContentMetrics{
		HasMain:      main != nil,
		HasLandmarks: doc.Find(landmarkSelector).Length() > 0,
		Links:        doc.Find("a[href]").Length(),
		CodeBlocks:   doc.Find("pre, code").Length(),
		HasList:      doc.Find("ul, ol").Length() > 0,
	}

	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if normalizeText(s.Text()) != "" {
			m.Paragraphs++
		}
	})
	m.Headings = doc.Find("h1, h2, h3, h4, h5, h6").Length()

	for _, sel := range clutterSelectors {
		m.ClutterCount += doc.Find(sel).Length()
	}

	words := strings.Fields(content)
	m.Words = len(words)
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += len(w)
		}
		m.AvgWordLength = float64(total) / float64(len(words))
	}
	return m
}

// score derives the three 0-100 suitability scores from the counters.
func score(m *schemas.ContentMetrics) {
	quality := 50
	if m.HasMain {
		quality += 20
	}
	if m.ClutterCount <= 2 {
		quality += 15
	}
	if m.HasLandmarks {
		quality += 5
	}
	m.Quality = clampScore(quality)

	readability := 50
	if m.Paragraphs > 3 {
		readability += 20
	}
	if m.Headings > 2 {
		readability += 15
	}
	if m.HasList {
		readability += 10
	}
	m.Readability = clampScore(readability)

	density := 50
	if m.AvgWordLength > 4 {
		density += 20
	}
	if m.Words > 300 {
		density += 15
	}
	if m.CodeBlocks > 0 {
		density += 15
	}
	m.Density = clampScore(density)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
