package extract

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/pricewatch/dom"
)

// Match is a successful strategy result: the typed value plus the raw text
// and selector it came from (diagnostics only).
type Match[T any] struct {
	Value    T
	Raw      string
	Selector string
}

// Strategy is one self-contained extraction attempt for a field.
// Find must not mutate the document.
type Strategy[T any] struct {
	Name string
	Find func(doc dom.Document) (Match[T], bool)
}

// Chain is an ordered, short-circuiting sequence of strategies for one field.
type Chain[T any] struct {
	Field      string
	Strategies []Strategy[T]
}

// Outcome is what a chain resolved to. When Found is false, Value is the zero
// value of T, which is the field's sentinel.
type Outcome[T any] struct {
	Match[T]
	Found    bool
	Strategy string
	Attempts int
}

// Resolve runs the strategies in order and stops at the first match.
func (c Chain[T]) Resolve(doc dom.Document) Outcome[T] {
	var out Outcome[T]
	for _, s := range c.Strategies {
		out.Attempts++
		m, ok := s.run(doc, c.Field)
		if ok {
			out.Match = m
			out.Found = true
			out.Strategy = s.Name
			return out
		}
	}
	return out
}

// run contains a strategy failure (including a panic from unexpected node
// structure) so it counts as "no match" for this strategy only.
func (s Strategy[T]) run(doc dom.Document, field string) (m Match[T], ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extract: strategy panicked, skipping",
				"field", field,
				"strategy", s.Name,
				"panic", fmt.Sprint(r),
			)
			m, ok = Match[T]{}, false
		}
	}()
	return s.Find(doc)
}

// queryAll is QueryAll with selector failures, including panics, folded
// into "no nodes".
func queryAll(doc dom.Document, selector string) (nodes []dom.Node) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extract: selector panicked", "selector", selector, "panic", fmt.Sprint(r))
			nodes = nil
		}
	}()
	nodes, err := doc.QueryAll(selector)
	if err != nil {
		slog.Debug("extract: selector failed", "selector", selector, "error", err)
		return nil
	}
	return nodes
}

// tryNode runs accept on one node. A panic rejects that node only.
func tryNode[T any](n dom.Node, selector string, accept func(dom.Node) (Match[T], bool)) (m Match[T], ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("extract: node read panicked", "selector", selector, "panic", fmt.Sprint(r))
			m, ok = Match[T]{}, false
		}
	}()
	return accept(n)
}

// firstNode walks selectors in order and every matched node within each,
// returning the first node for which accept reports a match.
func firstNode[T any](doc dom.Document, selectors []string, accept func(dom.Node) (Match[T], bool)) (Match[T], bool) {
	for _, selector := range selectors {
		for _, node := range queryAll(doc, selector) {
			if m, ok := tryNode(node, selector, accept); ok {
				m.Selector = selector
				return m, true
			}
		}
	}
	return Match[T]{}, false
}
