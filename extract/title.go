package extract

// TitleChain builds the title chain: one probe strategy per selector group,
// most specific group first.
func TitleChain(p Profile) Chain[string] {
	c := Chain[string]{Field: "title"}
	for _, g := range p.Title {
		c.Strategies = append(c.Strategies, probeStrategy(g.Name, g.Selectors))
	}
	return c
}
