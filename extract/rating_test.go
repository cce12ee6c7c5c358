package extract

import (
	"testing"

	"github.com/use-agent/pricewatch/dom"
)

func TestParseRating(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"4.3", 4.3, true},
		{"4.3★", 4.3, true},
		{"★ 4.5", 4.5, true},
		{"4.25", 4.3, true},
		{"0", 0, true},
		{"5", 5, true},
		{"7 stars", 0, false},
		{"5.1", 0, false},
		{"stars", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ParseRating(tt.text)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRating(%q) = (%v, %v), want (%v, %v)", tt.text, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLeadingFloat(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		wantOK bool
	}{
		{"4.3★", 4.3, true},
		{"  3 out of 5", 3, true},
		{".5", 0.5, true},
		{"★4.3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := leadingFloat(tt.text)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("leadingFloat(%q) = (%v, %v), want (%v, %v)", tt.text, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestRatingChain(t *testing.T) {
	tests := []struct {
		name         string
		html         string
		want         float64
		wantStrategy string
	}{
		{
			name:         "primary selector",
			html:         `<div class="_3LWZlK">4.4<img src="star.svg"></div>`,
			want:         4.4,
			wantStrategy: "div._3LWZlK",
		},
		{
			name:         "out of range falls through to sentinel",
			html:         `<div class="_3LWZlK">7 stars</div>`,
			want:         0,
			wantStrategy: "",
		},
		{
			name:         "long text rejected",
			html:         `<div class="_3LWZlK">4.1 based on many ratings</div><div class="_2d4LTz">3.9</div>`,
			want:         3.9,
			wantStrategy: "div._2d4LTz",
		},
		{
			name:         "star glyph accepted by star-aware validator",
			html:         `<div class="gUuXy- _16VRIQ">★4.2</div>`,
			want:         4.2,
			wantStrategy: "div[class*='gUuXy-']",
		},
		{
			name:         "star glyph rejected by numeric validator",
			html:         `<div class="_2d4LTz">★4.2</div>`,
			want:         0,
			wantStrategy: "",
		},
		{
			name:         "star scan fallback",
			html:         `<section><span>Rated 3.8 ★ by buyers</span></section>`,
			want:         3.8,
			wantStrategy: "star-scan",
		},
		{
			name: "nothing found",
			html: `<p>No ratings yet</p>`,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.Parse("<html><body>"+tt.html+"</body></html>", "")
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			out := RatingChain(FlipkartProfile()).Resolve(doc)
			if out.Value != tt.want {
				t.Errorf("rating = %v, want %v", out.Value, tt.want)
			}
			if out.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", out.Strategy, tt.wantStrategy)
			}
			if out.Value < 0 || out.Value > 5 {
				t.Errorf("rating %v outside [0,5]", out.Value)
			}
		})
	}
}
