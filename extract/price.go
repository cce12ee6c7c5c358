package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pricewatch/dom"
)

// PriceParser pulls the first price-looking substring out of free text.
type PriceParser struct {
	re      *regexp.Regexp
	symbols []string
}

// NewPriceParser builds a parser for the given currency symbols. The pattern
// is "symbol + digits with thousands separators" or bare digits with
// separators, each with an optional decimal part.
func NewPriceParser(symbols []string) *PriceParser {
	quoted := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s != "" {
			quoted = append(quoted, regexp.QuoteMeta(s))
		}
	}

	const number = `\d[\d,]*(?:\.\d+)?`
	pattern := number
	if len(quoted) > 0 {
		pattern = `(?:` + strings.Join(quoted, "|") + `)\s?` + number + `|` + number
	}

	return &PriceParser{re: regexp.MustCompile(pattern), symbols: symbols}
}

// Parse returns the parsed price and the matched substring. ok is false when
// no numeric substring exists. A match that parses to 0 is still ok; callers
// decide whether 0 is acceptable.
func (p *PriceParser) Parse(text string) (value float64, raw string, ok bool) {
	raw = p.re.FindString(text)
	if raw == "" {
		return 0, "", false
	}

	digits := raw
	for _, s := range p.symbols {
		digits = strings.ReplaceAll(digits, s, "")
	}
	digits = strings.ReplaceAll(strings.TrimSpace(digits), ",", "")

	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, raw, false
	}
	return v, raw, true
}

// hasSymbol reports whether text carries any configured currency symbol.
func (p *PriceParser) hasSymbol(text string) bool {
	for _, s := range p.symbols {
		if s != "" && strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// positive accepts a node when its text parses to a strictly positive price.
func (p *PriceParser) positive(n dom.Node) (Match[float64], bool) {
	text := strings.TrimSpace(n.Text())
	v, _, ok := p.Parse(text)
	if !ok || v <= 0 {
		return Match[float64]{}, false
	}
	return Match[float64]{Value: v, Raw: text}, true
}

// PriceChain builds the three price methods: direct structural selectors,
// class-pattern selectors, then a bounded full-document scan.
//
// Within a method a candidate that parses to zero does not end the method:
// a "₹0" placeholder is skipped and the next candidate is tried, so the
// first strictly positive price wins.
func PriceChain(p Profile) Chain[float64] {
	parser := NewPriceParser(p.Price.CurrencySymbols)
	maxRunes := p.Price.ScanMaxRunes
	if maxRunes <= 0 {
		maxRunes = 15
	}

	return Chain[float64]{
		Field: "price",
		Strategies: []Strategy[float64]{
			{
				Name: "direct",
				Find: func(doc dom.Document) (Match[float64], bool) {
					return firstNode(doc, p.Price.Direct, parser.positive)
				},
			},
			{
				Name: "class-pattern",
				Find: func(doc dom.Document) (Match[float64], bool) {
					return firstNode(doc, p.Price.ClassPattern, parser.positive)
				},
			},
			{
				Name: "document-scan",
				Find: func(doc dom.Document) (Match[float64], bool) {
					return firstNode(doc, []string{"*"}, func(n dom.Node) (Match[float64], bool) {
						text := strings.TrimSpace(n.Text())
						if utf8.RuneCountInString(text) >= maxRunes || !parser.hasSymbol(text) {
							return Match[float64]{}, false
						}
						return parser.positive(n)
					})
				},
			},
		},
	}
}
