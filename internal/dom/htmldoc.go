// -- internal/dom/htmldoc.go --
package dom

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// CandidateXPath is the union of native-interactive and text-bearing
// elements the text and attribute strategies scan. Elements interactive
// only through an explicit role attribute are left to the resolver's
// whole-document role scan. The live backend evaluates the same union
// in page XPath so both backends expose one candidate pool.
const CandidateXPath = `//a[@href] | //button | //input | //textarea | //select | //option | ` +
	`//summary | //details | //label | //*[@contenteditable='true'] | ` +
	`//*[@aria-label] | //*[@placeholder] | //*[@title] | ` +
	`//h1 | //h2 | //h3 | //h4 | //h5 | //h6 | //p | //span | //li | //td | //th | ` +
	`//legend | //figcaption`

// implicitRoles maps tags to the ARIA role they carry without an explicit
// role attribute.
var implicitRoles = map[string]string{
	"button":   "button",
	"option":   "option",
	"select":   "combobox",
	"textarea": "textbox",
}

// HTMLDocument is the in-process implementation of Document over parsed
// HTML. It backs unit tests and static (non-browser) runs. Actions record
// synthetic events instead of dispatching real ones; value-changing actions
// also mutate the tree so follow-up queries observe the effect.
type HTMLDocument struct {
	mu        sync.RWMutex
	root      *html.Node
	url       string
	title     string
	selection string
	active    *html.Node
	events    []Event
	mutations chan struct{}
}

var _ Document = (*HTMLDocument)(nil)

// Parse builds an HTMLDocument from markup. The url is what URL() reports;
// relative navigation is not resolved here.
func Parse(markup, url string) (*HTMLDocument, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document markup: %w", err)
	}
	d := &HTMLDocument{
		root:      root,
		url:       url,
		mutations: make(chan struct{}, 1),
	}
	if t := htmlquery.FindOne(root, "//title"); t != nil {
		d.title = normalizeSpace(htmlquery.InnerText(t))
	}
	return d, nil
}

// MustParse is Parse for tests and fixtures with known-good markup.
func MustParse(markup, url string) *HTMLDocument {
	d, err := Parse(markup, url)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *HTMLDocument) URL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.url
}

func (d *HTMLDocument) Title() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.title
}

func (d *HTMLDocument) SelectionText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selection
}

// Select runs a CSS query via cascadia. An unparsable selector returns an
// error; the resolver treats that as a strategy miss, not a failure.
func (d *HTMLDocument) Select(selector string) ([]Element, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes := cascadia.QueryAll(d.root, sel)
	return d.wrapAll(nodes), nil
}

// Candidates returns the interactive/text-bearing pool in document order.
func (d *HTMLDocument) Candidates() ([]Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(d.root, CandidateXPath)
	if err != nil {
		return nil, fmt.Errorf("candidate scan failed: %w", err)
	}
	return d.wrapAll(documentOrder(d.root, nodes)), nil
}

func (d *HTMLDocument) ActiveElement() (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.active == nil {
		return nil, false
	}
	return &htmlElement{doc: d, node: d.active}, true
}

// InputDescendant returns the first input-like descendant of el, if any. The
// executor falls back to it when a type action resolves to a container.
func (d *HTMLDocument) InputDescendant(el Element) (Element, bool) {
	n, err := d.nodeOf(el)
	if err != nil {
		return nil, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	found, err := htmlquery.QueryAll(n, `.//input | .//textarea | .//select | .//*[@contenteditable='true']`)
	if err != nil {
		return nil, false
	}
	for _, c := range documentOrder(n, found) {
		if nodeInputLike(c) {
			return &htmlElement{doc: d, node: c}, true
		}
	}
	return nil, false
}

// nodeInputLike is the lock-free twin of InputLike for use while holding the
// document mutex.
func nodeInputLike(n *html.Node) bool {
	switch strings.ToLower(n.Data) {
	case "textarea", "select":
		return true
	case "input":
		switch attrValue(n, "type") {
		case "button", "submit", "reset", "image", "hidden":
			return false
		}
		return true
	}
	if v, ok := lookupAttr(n, "contenteditable"); ok && v != "false" {
		return true
	}
	return false
}

func (d *HTMLDocument) HTML() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var sb strings.Builder
	if err := html.Render(&sb, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return sb.String(), nil
}

func (d *HTMLDocument) Mutations() <-chan struct{} {
	return d.mutations
}

// -- Actions --

func (d *HTMLDocument) Click(ctx context.Context, el Element) error {
	n, err := d.nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.active = n
	d.record(Event{Kind: "click", Target: el.Locator()})
	d.mu.Unlock()
	return nil
}

func (d *HTMLDocument) Hover(ctx context.Context, el Element) error {
	if _, err := d.nodeOf(el); err != nil {
		return err
	}
	d.mu.Lock()
	d.record(Event{Kind: "mouseenter", Target: el.Locator()})
	d.record(Event{Kind: "mouseover", Target: el.Locator()})
	d.mu.Unlock()
	return nil
}

func (d *HTMLDocument) SetValue(ctx context.Context, el Element, text string, clear bool) error {
	n, err := d.nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	current := ""
	if !clear {
		current = attrValue(n, "value")
	}
	setAttr(n, "value", current+text)
	if strings.EqualFold(n.Data, "textarea") {
		setTextContent(n, current+text)
	}
	d.active = n
	d.record(Event{Kind: "input", Target: el.Locator(), Detail: current + text})
	d.record(Event{Kind: "change", Target: el.Locator()})
	d.notify()
	return nil
}

func (d *HTMLDocument) SelectOption(ctx context.Context, el Element, value string) error {
	n, err := d.nodeOf(el)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	options, err := htmlquery.QueryAll(n, ".//option")
	if err != nil {
		return fmt.Errorf("option scan failed: %w", err)
	}
	var match *html.Node
	for _, opt := range options {
		optValue := attrValue(opt, "value")
		label := normalizeSpace(htmlquery.InnerText(opt))
		if optValue == value || strings.Contains(strings.ToLower(label), strings.ToLower(value)) {
			match = opt
			break
		}
	}
	if match == nil {
		return fmt.Errorf("no option matching %q", value)
	}

	for _, opt := range options {
		removeAttr(opt, "selected")
	}
	setAttr(match, "selected", "selected")
	if v := attrValue(match, "value"); v != "" {
		setAttr(n, "value", v)
	} else {
		setAttr(n, "value", normalizeSpace(htmlquery.InnerText(match)))
	}
	d.record(Event{Kind: "change", Target: el.Locator(), Detail: value})
	d.notify()
	return nil
}

func (d *HTMLDocument) PressKey(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	target := "document"
	if d.active != nil {
		target = uniqueXPath(d.active)
	}
	d.record(Event{Kind: "keydown", Target: target, Detail: key})
	return nil
}

func (d *HTMLDocument) ScrollBy(ctx context.Context, dx, dy int) error {
	d.mu.Lock()
	d.record(Event{Kind: "scroll_by", Target: "viewport", Detail: fmt.Sprintf("%d,%d", dx, dy)})
	d.mu.Unlock()
	return nil
}

func (d *HTMLDocument) ScrollIntoView(ctx context.Context, el Element) error {
	if _, err := d.nodeOf(el); err != nil {
		return err
	}
	d.mu.Lock()
	d.record(Event{Kind: "scroll_into_view", Target: el.Locator()})
	d.mu.Unlock()
	return nil
}

func (d *HTMLDocument) Highlight(ctx context.Context, el Element, dur time.Duration) error {
	if _, err := d.nodeOf(el); err != nil {
		return err
	}
	d.mu.Lock()
	d.record(Event{Kind: "highlight", Target: el.Locator(), Detail: dur.String()})
	d.mu.Unlock()
	return nil
}

// Navigate records intent only. The inert backend cannot load pages; the
// static session layered above replaces the whole document instead.
func (d *HTMLDocument) Navigate(ctx context.Context, rawURL string) error {
	d.mu.Lock()
	d.url = rawURL
	d.record(Event{Kind: "navigate", Target: "document", Detail: rawURL})
	d.notify()
	d.mu.Unlock()
	return nil
}

// -- Test and static-session hooks --

// Events returns a snapshot of all recorded synthetic events.
func (d *HTMLDocument) Events() []Event {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// AppendHTML parses fragment and appends its nodes to the first element
// matching parentSelector, then signals a mutation. Tests use it to simulate
// dynamically arriving content.
func (d *HTMLDocument) AppendHTML(parentSelector, fragment string) error {
	sel, err := cascadia.Parse(parentSelector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", parentSelector, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	parent := cascadia.Query(d.root, sel)
	if parent == nil {
		return fmt.Errorf("no element matches %q", parentSelector)
	}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.notify()
	return nil
}

// SetSelection sets the reported user text selection.
func (d *HTMLDocument) SetSelection(text string) {
	d.mu.Lock()
	d.selection = text
	d.mu.Unlock()
}

// -- internals --

// record appends an event; callers hold the write lock.
func (d *HTMLDocument) record(e Event) {
	d.events = append(d.events, e)
}

// notify performs a coalescing, non-blocking mutation signal; callers hold
// the write lock.
func (d *HTMLDocument) notify() {
	select {
	case d.mutations <- struct{}{}:
	default:
	}
}

func (d *HTMLDocument) wrapAll(nodes []*html.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			out = append(out, &htmlElement{doc: d, node: n})
		}
	}
	return out
}

// nodeOf recovers the underlying node from an Element produced by this
// document. Foreign elements are rejected rather than acted on blindly.
func (d *HTMLDocument) nodeOf(el Element) (*html.Node, error) {
	he, ok := el.(*htmlElement)
	if !ok || he.doc != d {
		return nil, fmt.Errorf("element does not belong to this document")
	}
	return he.node, nil
}

// documentOrder returns the members of nodes in tree order, deduplicated.
// XPath unions evaluate operand by operand, so the raw result interleaves;
// the browser backend's snapshot queries are already ordered, and both
// backends must report one order for tie-breaking to be stable.
func documentOrder(root *html.Node, nodes []*html.Node) []*html.Node {
	want := make(map[*html.Node]struct{}, len(nodes))
	for _, n := range nodes {
		want[n] = struct{}{}
	}
	out := make([]*html.Node, 0, len(want))
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if _, ok := want[n]; ok {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i := range n.Attr {
		if strings.EqualFold(n.Attr[i].Key, key) {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// setTextContent replaces all children of n with a single text node.
func setTextContent(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// -- Element implementation --

type htmlElement struct {
	doc  *HTMLDocument
	node *html.Node
}

var _ Element = (*htmlElement)(nil)

func (e *htmlElement) Tag() string {
	return strings.ToLower(e.node.Data)
}

func (e *htmlElement) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return normalizeSpace(htmlquery.InnerText(e.node))
}

func (e *htmlElement) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return lookupAttr(e.node, name)
}

func (e *htmlElement) Attributes() map[string]string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	out := make(map[string]string, len(e.node.Attr))
	for _, a := range e.node.Attr {
		out[strings.ToLower(a.Key)] = a.Val
	}
	return out
}

func (e *htmlElement) Role() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	if role := attrValue(e.node, "role"); role != "" {
		return strings.ToLower(role)
	}
	switch e.Tag() {
	case "a":
		if _, ok := lookupAttr(e.node, "href"); ok {
			return "link"
		}
		return ""
	case "input":
		switch attrValue(e.node, "type") {
		case "button", "submit", "reset":
			return "button"
		case "checkbox":
			return "checkbox"
		case "radio":
			return "radio"
		}
		return "textbox"
	}
	return implicitRoles[e.Tag()]
}

func (e *htmlElement) Visible() bool {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return nodeVisible(e.node)
}

func (e *htmlElement) Locator() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return uniqueXPath(e.node)
}
