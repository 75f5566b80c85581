// -- internal/dom/xpath.go --
package dom

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// uniqueXPath generates a stable XPath expression for a node, anchored at the
// nearest ancestor with an id so the locator survives unrelated document
// churn.
func uniqueXPath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}

		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		// An id anchors the path; traversal stops here.
		if id := attrValue(n, "id"); id != "" {
			path = append(path, fmt.Sprintf(`//*[@id='%s']`, id))
			break
		}

		path = append(path, fmt.Sprintf("%s[%d]", tag, siblingIndex(n, tag)))
	}

	if len(path) == 0 {
		return "/"
	}

	// The segments were collected leaf-first; reverse into document order.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// siblingIndex returns the 1-based position of n among preceding siblings
// sharing its tag, as XPath indexing requires.
func siblingIndex(n *html.Node, tag string) int {
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}
