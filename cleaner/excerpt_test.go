package cleaner

import (
	"strings"
	"testing"
	"unicode/utf8"
)

const productHTML = `<html><head><title>Phone</title><style>.x{}</style></head><body>
<header><nav><a href="/">Flipkart</a> <a href="/cart">Cart</a></nav></header>
<h1 class="yhB1nd">SAMSUNG Galaxy M14 5G</h1>
<div class="_30jeq3">₹13,490</div>
<script>window.__STATE__ = {"secret": true}</script>
<footer>Copyright Flipkart</footer>
</body></html>`

func TestExcerpt(t *testing.T) {
	c := NewCleaner()
	got := c.Excerpt(productHTML, "https://www.flipkart.com/x/p/itm1", 0)

	for _, want := range []string{"SAMSUNG Galaxy M14 5G", "₹13,490"} {
		if !strings.Contains(got, want) {
			t.Errorf("excerpt missing %q:\n%s", want, got)
		}
	}
	for _, unwanted := range []string{"__STATE__", "Copyright Flipkart", "Cart", ".x{}"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("excerpt contains %q:\n%s", unwanted, got)
		}
	}
}

func TestExcerpt_MainContent(t *testing.T) {
	para := strings.Repeat("This phone has a large battery and a bright display that works well outdoors. ", 8)
	page := `<html><body><nav>` + strings.Repeat(`<a href="/c">Category</a>`, 20) + `</nav>
<article><h2>Product Description</h2><p>` + para + `</p><p>` + para + `</p></article></body></html>`

	got := NewCleaner().Excerpt(page, "https://www.flipkart.com/x/p/itm1", 5000)
	if !strings.Contains(got, "large battery") {
		t.Errorf("excerpt missing description:\n%s", got)
	}
	if strings.Contains(got, "Category") {
		t.Errorf("excerpt kept navigation:\n%s", got)
	}
}

func TestExcerpt_Truncates(t *testing.T) {
	c := NewCleaner()
	long := "<html><body><p>" + strings.Repeat("₹ price row ", 500) + "</p></body></html>"

	got := c.Excerpt(long, "https://www.flipkart.com/", 100)
	if n := utf8.RuneCountInString(got); n != 101 {
		t.Errorf("rune count = %d, want 101 (100 + ellipsis)", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("truncated excerpt should end with an ellipsis")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"abc", 5, "abc"},
		{"abc", 3, "abc"},
		{"₹₹₹₹", 2, "₹₹…"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestCollapseText(t *testing.T) {
	if got := collapseText("<p>a</p>\n<b>b  c</b>"); got != "a b c" {
		t.Errorf("collapseText = %q", got)
	}
}
