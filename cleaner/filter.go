package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// chromeSelectors are page furniture that never belongs in an excerpt.
var chromeSelectors = []string{
	"script", "style", "noscript", "svg", "iframe",
	"header", "footer", "nav", "form",
	"[role='navigation']", "[role='banner']", "[class*='cookie']",
}

// stripChrome removes chromeSelectors from rawHTML. On parse failure the
// input is returned unchanged.
func stripChrome(rawHTML string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}
	for _, sel := range chromeSelectors {
		doc.Find(sel).Remove()
	}
	out, err := doc.Html()
	if err != nil {
		return rawHTML
	}
	return out
}
