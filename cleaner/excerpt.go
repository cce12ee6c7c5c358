// Package cleaner turns a rendered product page into a short markdown
// excerpt for diagnostics.
package cleaner

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
)

// DefaultExcerptRunes bounds excerpts when the caller passes 0.
const DefaultExcerptRunes = 2000

// Cleaner is safe for concurrent use.
type Cleaner struct {
	mdConverter *converter.Converter
}

func NewCleaner() *Cleaner {
	return &Cleaner{mdConverter: newMarkdownConverter()}
}

// Excerpt strips page chrome, keeps readability's main content when it
// finds any, converts to markdown and truncates to maxRunes. It never
// fails: on conversion errors it falls back to collapsed page text.
func (c *Cleaner) Excerpt(rawHTML, sourceURL string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultExcerptRunes
	}

	body := mainContent(stripChrome(rawHTML), sourceURL)

	md, err := toMarkdown(c.mdConverter, body, sourceURL)
	if err != nil {
		slog.Debug("excerpt: markdown conversion failed", "url", sourceURL, "error", err)
		md = collapseText(body)
	}
	return truncateRunes(strings.TrimSpace(md), maxRunes)
}

func collapseText(htmlStr string) string {
	var b strings.Builder
	inTag := false
	for _, r := range htmlStr {
		switch {
		case r == '<':
			inTag = true
			b.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "…"
}
