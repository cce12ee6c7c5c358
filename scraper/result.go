package scraper

import "time"

// LoadRequest describes one product page render.
type LoadRequest struct {
	URL     string
	Timeout time.Duration

	// WaitSelectors mark the page as ready once any of them appears.
	WaitSelectors []string

	// FetchMode is "auto", "http" or "browser". Empty means "auto".
	FetchMode string

	Stealth bool
}

// PageResult is a rendered page snapshot ready to be parsed.
type PageResult struct {
	// HTML is the serialized DOM after readiness steps. In browser mode
	// every img carries data-pw-width/data-pw-height with its rendered size.
	HTML string

	Title      string
	StatusCode int
	FinalURL   string

	// EngineUsed is "http", "rod" or "rod-stealth".
	EngineUsed string

	// Elapsed is the time spent fetching and rendering.
	Elapsed time.Duration
}
