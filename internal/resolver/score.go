// -- internal/resolver/score.go --
package resolver

import "strings"

// selectorTags are bare element names accepted as literal selectors. A
// target like "button" queries by tag; "Submit" does not.
var selectorTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "form": true, "label": true, "img": true,
	"div": true, "span": true, "p": true, "ul": true, "ol": true,
	"li": true, "table": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"nav": true, "main": true, "header": true, "footer": true,
	"section": true, "article": true, "summary": true, "details": true,
	"option": true, "iframe": true, "video": true, "audio": true,
}

// looksLikeSelector reports whether target reads as a CSS selector rather
// than human text: id/class/attribute prefixes, combinators, or a bare
// known tag name.
func looksLikeSelector(target string) bool {
	s := strings.TrimSpace(target)
	if s == "" {
		return false
	}
	switch s[0] {
	case '#', '.', '[', '*':
		return true
	}
	if strings.ContainsAny(s, "[]>+~=") {
		return true
	}
	// Pseudo-classes and compound selectors carry ':' without spaces;
	// prose ("Note: click here") does not.
	if strings.Contains(s, ":") && !strings.Contains(s, " ") {
		return true
	}
	return selectorTags[strings.ToLower(s)]
}

// fuzzyScore rates how well target text matches the search string:
//
//	exact (case-insensitive)        100
//	target contains search          80 + (searchLen/targetLen)*20
//	search contains target          60 + (targetLen/searchLen)*20
//	otherwise                       word-overlap fraction * 50
//
// Containment weights favor tight matches: the closer the lengths, the
// higher the score. The overlap fraction is the share of search words
// present in the target.
func fuzzyScore(search, target string) float64 {
	search = strings.ToLower(strings.TrimSpace(search))
	target = strings.ToLower(strings.TrimSpace(target))
	if search == "" || target == "" {
		return 0
	}
	if search == target {
		return 100
	}
	if strings.Contains(target, search) {
		return 80 + float64(len(search))/float64(len(target))*20
	}
	if strings.Contains(search, target) {
		return 60 + float64(len(target))/float64(len(search))*20
	}

	searchWords := strings.Fields(search)
	if len(searchWords) == 0 {
		return 0
	}
	targetWords := make(map[string]bool)
	for _, w := range strings.Fields(target) {
		targetWords[w] = true
	}
	matched := 0
	for _, w := range searchWords {
		if targetWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(searchWords)) * 50
}

// containsFold reports a case-insensitive substring match.
func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
