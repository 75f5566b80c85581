// -- internal/dom/visibility.go --
package dom

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// inlineStyle parses a style attribute into a property map. Values are
// lowercased and trimmed; malformed declarations are skipped.
func inlineStyle(n *html.Node) map[string]string {
	raw := attrValue(n, "style")
	if raw == "" {
		return nil
	}
	props := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		props[key] = strings.ToLower(strings.TrimSpace(v))
	}
	return props
}

// styleLookup walks from n to the root and returns the nearest declared value
// for prop, or def when nothing declares it. This mirrors how the inherited
// properties of the predicate (visibility) cascade.
func styleLookup(n *html.Node, prop, def string) string {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if v, ok := inlineStyle(cur)[prop]; ok {
			return v
		}
	}
	return def
}

// nodeVisible implements the visibility predicate over parsed HTML. Without a
// layout pass, the box check is judged from declared dimensions and the
// hidden attribute rather than computed geometry.
func nodeVisible(n *html.Node) bool {
	// display:none and the hidden attribute remove the box entirely, for
	// the element and everything under it.
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Type != html.ElementNode {
			continue
		}
		if inlineStyle(cur)["display"] == "none" {
			return false
		}
		if _, hidden := lookupAttr(cur, "hidden"); hidden {
			return false
		}
	}

	if attrValue(n, "type") == "hidden" && strings.EqualFold(n.Data, "input") {
		return false
	}

	visibility := styleLookup(n, "visibility", "visible")
	if visibility == "hidden" || visibility == "collapse" {
		return false
	}

	opacityStr := styleLookup(n, "opacity", "1.0")
	if opacity, err := strconv.ParseFloat(opacityStr, 64); err == nil && opacity <= 0.0 {
		return false
	}

	return !zeroBox(n)
}

// zeroBox reports a declared zero-size box: width/height attributes or inline
// dimensions of 0.
func zeroBox(n *html.Node) bool {
	style := inlineStyle(n)
	for _, dim := range []string{"width", "height"} {
		if v, ok := lookupAttr(n, dim); ok && dimensionIsZero(v) {
			return true
		}
		if v, ok := style[dim]; ok && dimensionIsZero(v) {
			return true
		}
	}
	return false
}

// dimensionIsZero accepts "0", "0px", "0%", "0.0" and similar.
func dimensionIsZero(v string) bool {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "px")
	v = strings.TrimSuffix(v, "%")
	v = strings.TrimSuffix(v, "em")
	v = strings.TrimSuffix(v, "rem")
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return err == nil && f == 0
}

// attrValue returns the attribute's value, or "" when absent.
func attrValue(n *html.Node, name string) string {
	v, _ := lookupAttr(n, name)
	return v
}

// lookupAttr returns the attribute's value and presence, case-insensitive on
// the name as HTML attributes are.
func lookupAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}
