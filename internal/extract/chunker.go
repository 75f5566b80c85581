// -- internal/extract/chunker.go --
package extract

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

const (
	chunkCapBalanced = 30
	chunkCapThorough = 50

	// minChunkChars filters out stub fragments (empty headings, one-word
	// paragraphs) before ranking.
	minChunkChars = 3
)

// EstimateTokens approximates the token cost of s as ceil(len/4). Every
// budget computation in the package uses this same estimate.
func EstimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// chunkPriority assigns the rank used for packing order.
//
//	heading:   90 - level*10 (h1=80 .. h6=30)
//	paragraph: max(40, 70 - (index/3)*5), earlier paragraphs favored
//	code:      75
//	list:      60
//	quote:     55
func chunkPriority(t schemas.ChunkType, level, index int) int {
	switch t {
	case schemas.ChunkHeading:
		return 90 - level*10
	case schemas.ChunkParagraph:
		p := 70 - (index/3)*5
		if p < 40 {
			p = 40
		}
		return p
	case schemas.ChunkCode:
		return 75
	case schemas.ChunkList:
		return 60
	case schemas.ChunkQuote:
		return 55
	}
	return 0
}

// collectChunks walks the content root and emits typed chunks in document
// order, ranked and truncated to the mode's cap.
func collectChunks(root *goquery.Selection, limit int) []schemas.ContentChunk {
	var chunks []schemas.ContentChunk
	counts := map[schemas.ChunkType]int{}

	add := func(t schemas.ChunkType, level int, text string) {
		if len(text) < minChunkChars {
			return
		}
		index := counts[t]
		counts[t]++
		chunks = append(chunks, schemas.ContentChunk{
			Type:     t,
			Level:    level,
			Index:    index,
			Text:     text,
			Priority: chunkPriority(t, level, index),
			Tokens:   EstimateTokens(text),
		})
	}

	root.Find("h1, h2, h3, h4, h5, h6, p, pre, ul, ol, blockquote").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		switch tag {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			add(schemas.ChunkHeading, int(tag[1]-'0'), normalizeText(s.Text()))
		case "p":
			// Paragraphs inside blockquotes surface as quote chunks.
			if s.ParentsFiltered("blockquote").Length() > 0 {
				return
			}
			add(schemas.ChunkParagraph, 0, normalizeText(s.Text()))
		case "pre":
			// Line structure matters for code; trim only.
			add(schemas.ChunkCode, 0, strings.TrimSpace(s.Text()))
		case "ul", "ol":
			// Nested lists are already covered by the outer list's text.
			if s.ParentsFiltered("ul, ol").Length() > 0 {
				return
			}
			var items []string
			s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				if t := normalizeText(li.Text()); t != "" {
					items = append(items, "- "+t)
				}
			})
			add(schemas.ChunkList, 0, strings.Join(items, "\n"))
		case "blockquote":
			add(schemas.ChunkQuote, 0, normalizeText(s.Text()))
		}
	})

	// Rank by priority, stable so document order breaks ties.
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Priority > chunks[j].Priority
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks
}

// packChunks greedily takes chunks in the given priority order while the
// running token total stays within budget, and stops at the first chunk
// that would overflow. No reordering and no backfilling with smaller later
// chunks.
func packChunks(chunks []schemas.ContentChunk, budget int) ([]schemas.ContentChunk, int) {
	packed := make([]schemas.ContentChunk, 0, len(chunks))
	total := 0
	for _, c := range chunks {
		if total+c.Tokens > budget {
			break
		}
		packed = append(packed, c)
		total += c.Tokens
	}
	return packed, total
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
