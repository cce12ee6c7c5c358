package dom

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Attributes the scraper stamps on every <img> with the rendered box size
// (getBoundingClientRect) right before the HTML snapshot is taken.
const (
	AttrRenderedWidth  = "data-pw-width"
	AttrRenderedHeight = "data-pw-height"
)

// HTMLDocument implements Document over a parsed HTML snapshot.
// It is never mutated after Parse and is safe for concurrent reads.
type HTMLDocument struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse builds a Document from rendered HTML. baseURL is used to resolve
// relative src/href attributes; it may be empty.
func Parse(rawHTML, baseURL string) (*HTMLDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}

	var base *url.URL
	if baseURL != "" {
		if u, parseErr := url.Parse(baseURL); parseErr == nil {
			base = u
		}
	}

	return &HTMLDocument{doc: doc, base: base}, nil
}

// QueryAll compiles the selector with cascadia first so that a malformed
// selector surfaces as an error instead of a silent empty selection.
func (d *HTMLDocument) QueryAll(selector string) ([]Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("dom: invalid selector %q: %w", selector, err)
	}

	matches := d.doc.FindMatcher(sel)
	nodes := make([]Node, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &htmlNode{sel: s, base: d.base})
	})
	return nodes, nil
}

// HTML returns the serialised snapshot, used for layout fingerprints and
// diagnostic excerpts.
func (d *HTMLDocument) HTML() string {
	h, err := d.doc.Html()
	if err != nil {
		return ""
	}
	return h
}

// URL returns the document URL, or "" when none was given.
func (d *HTMLDocument) URL() string {
	if d.base == nil {
		return ""
	}
	return d.base.String()
}

type htmlNode struct {
	sel  *goquery.Selection
	base *url.URL
}

func (n *htmlNode) Text() string {
	return n.sel.Text()
}

func (n *htmlNode) Attr(name string) (string, bool) {
	v, ok := n.sel.Attr(name)
	if !ok {
		return "", false
	}
	if (name == "src" || name == "href") && n.base != nil && v != "" && !strings.HasPrefix(v, "data:") {
		if resolved, err := n.base.Parse(strings.TrimSpace(v)); err == nil {
			return resolved.String(), true
		}
	}
	return v, true
}

// Size prefers the rendered box stamped by the scraper and falls back to the
// width/height attributes of static markup.
func (n *htmlNode) Size() Size {
	if w, h, ok := n.dims(AttrRenderedWidth, AttrRenderedHeight); ok {
		return Size{Width: w, Height: h}
	}
	if w, h, ok := n.dims("width", "height"); ok {
		return Size{Width: w, Height: h}
	}
	return Size{}
}

func (n *htmlNode) dims(wAttr, hAttr string) (float64, float64, bool) {
	ws, wok := n.sel.Attr(wAttr)
	hs, hok := n.sel.Attr(hAttr)
	if !wok || !hok {
		return 0, 0, false
	}
	w, err := parsePixels(ws)
	if err != nil {
		return 0, 0, false
	}
	h, err := parsePixels(hs)
	if err != nil {
		return 0, 0, false
	}
	return w, h, true
}

func parsePixels(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	return strconv.ParseFloat(s, 64)
}
