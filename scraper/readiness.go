package scraper

import (
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/use-agent/pricewatch/dom"
)

// waitForAny blocks until one of the selectors matches or wait elapses.
// A timeout is not an error: extraction decides what is missing.
func waitForAny(p *rod.Page, selectors []string, wait time.Duration) {
	if len(selectors) == 0 {
		return
	}
	race := p.Timeout(wait).Race()
	for _, sel := range selectors {
		race = race.Element(sel)
	}
	if _, err := race.Do(); err != nil {
		slog.Debug("wait selectors did not appear, proceeding", "selectors", selectors, "error", err)
	}
}

// scrollPasses scrolls to the bottom of the page n times so lazily loaded
// content (reviews, images) gets requested, then returns to the top.
func scrollPasses(p *rod.Page, n int, pause time.Duration) {
	for i := 0; i < n; i++ {
		if _, err := p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			slog.Debug("scroll pass failed", "pass", i, "error", err)
			return
		}
		select {
		case <-time.After(pause):
		case <-p.GetContext().Done():
			return
		}
	}
	_, _ = p.Eval(`() => window.scrollTo(0, 0)`)
}

// annotateImageSizes stamps each img with its rendered bounding box so the
// size survives serialization into the HTML snapshot.
func annotateImageSizes(p *rod.Page) {
	js := `(wAttr, hAttr) => {
		let n = 0;
		for (const img of document.images) {
			const r = img.getBoundingClientRect();
			img.setAttribute(wAttr, String(Math.round(r.width)));
			img.setAttribute(hAttr, String(Math.round(r.height)));
			n++;
		}
		return n;
	}`
	res, err := p.Eval(js, dom.AttrRenderedWidth, dom.AttrRenderedHeight)
	if err != nil {
		slog.Debug("image size annotation failed", "error", err)
		return
	}
	slog.Debug("annotated images", "count", res.Value.Int())
}
