package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/use-agent/pricewatch/dom"
)

var reviewPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s*reviews?`)

// ParseReviewCount extracts "<digits> review(s)" from text. ok is false when
// the pattern is absent.
func ParseReviewCount(text string) (int, bool) {
	sub := reviewPattern.FindStringSubmatch(text)
	if sub == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(sub[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ReviewChain builds one strategy per review selector. The first strictly
// positive count wins.
func ReviewChain(p Profile) Chain[int] {
	c := Chain[int]{Field: "reviews"}
	for _, selector := range p.Reviews {
		c.Strategies = append(c.Strategies, Strategy[int]{
			Name: selector,
			Find: func(doc dom.Document) (Match[int], bool) {
				return firstNode(doc, []string{selector}, func(n dom.Node) (Match[int], bool) {
					text := strings.TrimSpace(n.Text())
					count, ok := ParseReviewCount(text)
					if !ok || count <= 0 {
						return Match[int]{}, false
					}
					return Match[int]{Value: count, Raw: text}, true
				})
			},
		})
	}
	return c
}
