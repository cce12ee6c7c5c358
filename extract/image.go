package extract

import (
	"net/url"
	"strings"

	"github.com/use-agent/pricewatch/dom"
)

func isInlineImage(src string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(src)), "data:")
}

// onCDN reports whether src's hostname contains one of the CDN fragments.
func onCDN(src string, fragments []string) bool {
	u, err := url.Parse(src)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}
	for _, f := range fragments {
		if f != "" && strings.Contains(host, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// ImageChain builds the CDN-biased selector strategies followed by the
// rendered-size fallback over every <img>.
func ImageChain(p Profile) Chain[string] {
	rules := p.Image
	c := Chain[string]{Field: "image"}

	for _, selector := range rules.Selectors {
		c.Strategies = append(c.Strategies, Strategy[string]{
			Name: selector,
			Find: func(doc dom.Document) (Match[string], bool) {
				return firstNode(doc, []string{selector}, func(n dom.Node) (Match[string], bool) {
					src, ok := n.Attr("src")
					if !ok || src == "" || isInlineImage(src) || !onCDN(src, rules.CDNHosts) {
						return Match[string]{}, false
					}
					return Match[string]{Value: src, Raw: src}, true
				})
			},
		})
	}

	c.Strategies = append(c.Strategies, Strategy[string]{
		Name: "rendered-size",
		Find: func(doc dom.Document) (Match[string], bool) {
			return firstNode(doc, []string{"img"}, func(n dom.Node) (Match[string], bool) {
				src, ok := n.Attr("src")
				if !ok || src == "" || isInlineImage(src) {
					return Match[string]{}, false
				}
				size := n.Size()
				if size.Width <= rules.MinWidth || size.Height <= rules.MinHeight {
					return Match[string]{}, false
				}
				return Match[string]{Value: src, Raw: src}, true
			})
		},
	})

	return c
}
