package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest readability text accepted as the main
// content. Product pages are mostly widgets, so this often fails.
const minContentLength = 50

// mainContent returns readability's main-content HTML, or rawHTML when
// readability errors or finds too little.
func mainContent(rawHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL, using full page", "url", sourceURL, "error", err)
		return rawHTML
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed, using full page", "url", sourceURL, "error", err)
		return rawHTML
	}
	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Debug("readability: content too short, using full page", "url", sourceURL, "length", len(article.TextContent))
		return rawHTML
	}
	return article.Content
}
