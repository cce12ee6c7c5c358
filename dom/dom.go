// Package dom is the read-only query boundary between a rendered product page
// and the extraction engine.
//
// The engine only ever sees the Document and Node interfaces. The HTML
// implementation in this package wraps goquery over a rendered HTML snapshot
// produced by the scraper.
package dom

// Size is the rendered box of a node in CSS pixels.
type Size struct {
	Width  float64
	Height float64
}

// Document is a read-only query capability over a rendered page.
type Document interface {
	// QueryAll returns every node matching the CSS selector, in document order.
	// An invalid selector returns an error; callers treat it as "no match".
	QueryAll(selector string) ([]Node, error)
}

// Node is a single matched element.
type Node interface {
	// Text returns the node's textContent (untrimmed).
	Text() string

	// Attr returns the attribute value and whether it was present.
	// "src" and "href" are resolved against the document URL.
	Attr(name string) (string, bool)

	// Size returns the rendered dimensions, or the zero Size when unknown.
	Size() Size
}
