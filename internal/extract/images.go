// -- internal/extract/images.go --
package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// eligibleScore is the floor an image must clear to be reported as an OCR
// candidate.
const eligibleScore = 40

// meaningfulWords in alt/src/class suggest the image carries information
// worth reading.
var meaningfulWords = []string{
	"chart", "graph", "diagram", "screenshot", "infographic",
	"illustration", "figure", "map", "photo", "receipt", "invoice",
}

// decorativeWords mark page furniture not worth OCR.
var decorativeWords = []string{
	"logo", "icon", "sprite", "avatar", "badge", "banner", "bullet",
	"spacer", "pixel", "tracking", "emoji", "decoration", "background",
}

// collectImages scores every <img> and returns the eligible candidates,
// highest score first, capped at maxImages.
func collectImages(doc *goquery.Document, main *goquery.Selection, maxImages int) []schemas.ImageCandidate {
	if maxImages <= 0 {
		return nil
	}

	var out []schemas.ImageCandidate
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if src == "" {
			return
		}
		c := schemas.ImageCandidate{
			Src:      src,
			Alt:      strings.TrimSpace(s.AttrOr("alt", "")),
			Width:    intAttr(s, "width"),
			Height:   intAttr(s, "height"),
			InFigure: s.ParentsFiltered("figure").Length() > 0,
			Region:   imageRegion(s, main),
		}
		c.HasCaption = c.InFigure && s.ParentsFiltered("figure").Find("figcaption").Length() > 0
		c.Score = scoreImage(&c, s.AttrOr("class", ""))
		if c.Score > eligibleScore {
			out = append(out, c)
		}
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > maxImages {
		out = out[:maxImages]
	}
	return out
}

// scoreImage applies the importance heuristics. Base 50; size, placement,
// captioning and vocabulary shift it; result clamps to [0,100].
func scoreImage(c *schemas.ImageCandidate, class string) int {
	score := 50

	switch {
	case c.Width >= 300 && c.Height >= 300:
		score += 15
	case c.Width >= 100 && c.Height >= 100:
		score += 5
	case (c.Width > 0 && c.Width < 50) || (c.Height > 0 && c.Height < 50):
		score -= 25
	}

	if c.Region == schemas.RegionMain {
		score += 10
	}
	if c.InFigure {
		score += 10
	}
	if c.HasCaption {
		score += 10
	}

	haystack := strings.ToLower(c.Alt + " " + c.Src + " " + class)
	if containsAny(haystack, meaningfulWords) {
		score += 15
	}
	if containsAny(haystack, decorativeWords) {
		score -= 20
	}

	if c.Width > 0 && c.Height > 0 {
		ratio := float64(c.Width) / float64(c.Height)
		if ratio > 4 || ratio < 0.25 {
			score -= 15
		}
	}

	lowSrc := strings.ToLower(c.Src)
	if strings.HasSuffix(lowSrc, ".svg") || strings.HasSuffix(lowSrc, ".ico") ||
		strings.HasPrefix(lowSrc, "data:image/svg") {
		score -= 15
	}

	switch c.Region {
	case schemas.RegionHeader, schemas.RegionFooter, schemas.RegionNav:
		score -= 20
	}

	return clampScore(score)
}

// imageRegion locates the image within the page's landmark structure.
// Header/footer/nav ancestry wins over main-content containment.
func imageRegion(s *goquery.Selection, main *goquery.Selection) schemas.ImageRegion {
	if s.ParentsFiltered("header").Length() > 0 {
		return schemas.RegionHeader
	}
	if s.ParentsFiltered("footer").Length() > 0 {
		return schemas.RegionFooter
	}
	if s.ParentsFiltered("nav").Length() > 0 {
		return schemas.RegionNav
	}
	if main != nil {
		node := s.Get(0)
		for _, mn := range main.Nodes {
			for cur := node; cur != nil; cur = cur.Parent {
				if cur == mn {
					return schemas.RegionMain
				}
			}
		}
	}
	return schemas.RegionOther
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func intAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
