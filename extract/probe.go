package extract

import (
	"strings"

	"github.com/use-agent/pricewatch/dom"
)

// Probe returns the first non-empty trimmed text among all nodes matched by
// selectors, tried in order. It also reports which selector produced it.
// Invalid selectors count as "no match".
func Probe(doc dom.Document, selectors []string) (text, selector string, ok bool) {
	m, ok := firstNode(doc, selectors, func(n dom.Node) (Match[string], bool) {
		t := strings.TrimSpace(n.Text())
		return Match[string]{Value: t, Raw: t}, t != ""
	})
	return m.Value, m.Selector, ok
}

// probeStrategy adapts Probe over one selector group into a text strategy.
func probeStrategy(name string, selectors []string) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Find: func(doc dom.Document) (Match[string], bool) {
			text, sel, ok := Probe(doc, selectors)
			return Match[string]{Value: text, Raw: text, Selector: sel}, ok
		},
	}
}
