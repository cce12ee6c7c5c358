// Package layout fingerprints page structure so a refresh can tell when a
// site has changed its markup under the selectors.
package layout

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"strings"

	"golang.org/x/net/html"
)

// Fingerprint computes a 64-bit SimHash over the structural tokens of the
// document: tag trigrams plus every tag.class pair. Text and attribute
// values other than class are ignored, so price or title changes do not
// move the fingerprint but renamed classes do.
func Fingerprint(rawHTML string) uint64 {
	tags, classes := structuralTokens(rawHTML)
	if len(tags) == 0 {
		return 0
	}
	tokens := shingles(tags, 3)
	if len(tokens) == 0 {
		tokens = tags
	}
	return simhash(append(tokens, classes...))
}

// Distance is the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Drifted reports whether cur differs from prev by more than threshold
// bits. An unknown fingerprint (0) never counts as drift.
func Drifted(prev, cur uint64, threshold int) bool {
	if prev == 0 || cur == 0 {
		return false
	}
	return Distance(prev, cur) > threshold
}

// Hex renders a fingerprint for logs and diagnostics.
func Hex(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

var skipContent = map[string]bool{"script": true, "style": true, "noscript": true, "svg": true}

func structuralTokens(rawHTML string) (tags, classes []string) {
	z := html.NewTokenizer(strings.NewReader(rawHTML))
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tags, classes
		case html.EndTagToken:
			tn, _ := z.TagName()
			if skipContent[string(tn)] && skip > 0 {
				skip--
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := z.TagName()
			tag := string(tn)
			if skip > 0 {
				continue
			}
			if skipContent[tag] && tt == html.StartTagToken {
				skip++
			}
			tags = append(tags, tag)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) != "class" {
					continue
				}
				for _, c := range strings.Fields(string(val)) {
					classes = append(classes, tag+"."+c)
				}
			}
		}
	}
}

func shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		out = append(out, strings.Join(tokens[i:i+n], ">"))
	}
	return out
}

func simhash(tokens []string) uint64 {
	var vector [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for i := 0; i < 64; i++ {
			if sum&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}
	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}
