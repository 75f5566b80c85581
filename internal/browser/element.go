// internal/browser/element.go
package browser

import "github.com/mvoss9k/tabpilot/internal/dom"

// elemInfo is the wire form of one element descriptor produced by the
// page-side scan.
type elemInfo struct {
	Tag     string            `json:"tag"`
	Text    string            `json:"text"`
	Attrs   map[string]string `json:"attrs"`
	Role    string            `json:"role"`
	Visible bool              `json:"visible"`
	Locator string            `json:"locator"`
}

// queryResult is the envelope every descriptor-returning snippet yields.
type queryResult struct {
	Elements []elemInfo `json:"elements"`
	Error    string     `json:"error"`
}

// remoteElement is a point-in-time snapshot of a live page element. The
// attribute map and text are captured at scan time; actions re-address the
// node through the locator, so a stale snapshot surfaces as a miss rather
// than acting on the wrong element.
type remoteElement struct {
	info elemInfo
}

var _ dom.Element = (*remoteElement)(nil)

func (e *remoteElement) Tag() string  { return e.info.Tag }
func (e *remoteElement) Text() string { return e.info.Text }

func (e *remoteElement) Attr(name string) (string, bool) {
	v, ok := e.info.Attrs[name]
	return v, ok
}

func (e *remoteElement) Attributes() map[string]string {
	out := make(map[string]string, len(e.info.Attrs))
	for k, v := range e.info.Attrs {
		out[k] = v
	}
	return out
}

func (e *remoteElement) Role() string    { return e.info.Role }
func (e *remoteElement) Visible() bool   { return e.info.Visible }
func (e *remoteElement) Locator() string { return e.info.Locator }

func wrapInfos(infos []elemInfo) []dom.Element {
	out := make([]dom.Element, len(infos))
	for i := range infos {
		out[i] = &remoteElement{info: infos[i]}
	}
	return out
}
