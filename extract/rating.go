package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pricewatch/dom"
)

const (
	maxRating = 5.0

	// Rating text is always short; longer text is prose that merely mentions
	// a number.
	maxRatingRunes = 10
)

var (
	leadingNumber = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)`)
	nonNumeric    = regexp.MustCompile(`[^\d.]`)
)

// leadingFloat parses the numeric prefix of s after leading whitespace,
// ignoring whatever follows ("4.3★" -> 4.3). ok is false when s does not
// start with a number.
func leadingFloat(s string) (float64, bool) {
	num := leadingNumber.FindString(strings.TrimLeft(s, " \t\r\n"))
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func inRatingRange(v float64) bool {
	return v >= 0 && v <= maxRating
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// ParseRating strips everything but digits and decimal points, parses the
// result and accepts it only inside [0, 5], rounded to one decimal.
func ParseRating(text string) (float64, bool) {
	v, ok := leadingFloat(nonNumeric.ReplaceAllString(text, ""))
	if !ok || !inRatingRange(v) {
		return 0, false
	}
	return roundTenth(v), true
}

// ratingValidator is the per-selector pre-check applied before parsing.
func ratingValidator(c RatingCandidate, star string) func(string) bool {
	numeric := func(text string) bool {
		v, ok := leadingFloat(text)
		return ok && inRatingRange(v)
	}
	if !c.AllowStar || star == "" {
		return numeric
	}
	return func(text string) bool {
		return strings.Contains(text, star) || numeric(text)
	}
}

// RatingChain builds one strategy per {selector, validation} pair plus the
// star-pattern document scan as the last resort.
func RatingChain(p Profile) Chain[float64] {
	star := p.Rating.StarGlyph
	c := Chain[float64]{Field: "rating"}

	for _, cand := range p.Rating.Candidates {
		valid := ratingValidator(cand, star)
		selector := cand.Selector
		c.Strategies = append(c.Strategies, Strategy[float64]{
			Name: selector,
			Find: func(doc dom.Document) (Match[float64], bool) {
				return firstNode(doc, []string{selector}, func(n dom.Node) (Match[float64], bool) {
					text := strings.TrimSpace(n.Text())
					if text == "" || utf8.RuneCountInString(text) > maxRatingRunes {
						return Match[float64]{}, false
					}
					if !valid(text) {
						return Match[float64]{}, false
					}
					v, ok := ParseRating(text)
					return Match[float64]{Value: v, Raw: text}, ok
				})
			},
		})
	}

	if star != "" {
		starPattern := regexp.MustCompile(`([0-5](?:\.\d)?)\s*` + regexp.QuoteMeta(star))
		c.Strategies = append(c.Strategies, Strategy[float64]{
			Name: "star-scan",
			Find: func(doc dom.Document) (Match[float64], bool) {
				return firstNode(doc, []string{"*"}, func(n dom.Node) (Match[float64], bool) {
					text := strings.TrimSpace(n.Text())
					if !strings.Contains(text, star) {
						return Match[float64]{}, false
					}
					sub := starPattern.FindStringSubmatch(text)
					if sub == nil {
						return Match[float64]{}, false
					}
					v, err := strconv.ParseFloat(sub[1], 64)
					if err != nil || !inRatingRange(v) {
						return Match[float64]{}, false
					}
					return Match[float64]{Value: roundTenth(v), Raw: sub[0]}, true
				})
			},
		})
	}

	return c
}
