package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/use-agent/pricewatch/dom"
	"github.com/use-agent/pricewatch/models"
)

const productPage = `<html><head><title>Buy Phone Online</title></head><body>
<div class="_1AtVbE">
  <div class="CXW8mj"><img class="_396cs4" src="https://rukminim2.flixcart.com/image/416/416/phone.jpeg" data-pw-width="416" data-pw-height="416"></div>
</div>
<h1 class="yhB1nd"><span class="B_NuCI">SAMSUNG Galaxy M14 5G (Smoky Teal, 128 GB)  </span></h1>
<div class="gUuXy-"><div class="_3LWZlK">4.2<img src="data:image/svg+xml;base64,AAA"></div>
<span class="_2_R_DZ"><span>1,03,775 Ratings&nbsp;&amp; 6,209 Reviews</span></span></div>
<div class="_25b18c"><div class="_30jeq3 _16Jk6d">₹13,490</div><div class="_3I9_wc _2p6lqe">₹17,990</div></div>
</body></html>`

func parse(t *testing.T, html string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.Parse(html, "https://www.flipkart.com/samsung-galaxy-m14/p/itm123")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestExtract_FullPage(t *testing.T) {
	rec, err := New(FlipkartProfile()).Extract(parse(t, productPage))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := Record{
		Title:   "SAMSUNG Galaxy M14 5G (Smoky Teal, 128 GB)",
		Price:   13490,
		Rating:  4.2,
		Reviews: 6209,
		Image:   "https://rukminim2.flixcart.com/image/416/416/phone.jpeg",
	}
	if *rec != want {
		t.Errorf("Extract() = %+v, want %+v", *rec, want)
	}
}

func TestExtract_PriceAndReviewsScenario(t *testing.T) {
	html := `<html><body><h1>Noise Headphones</h1>
<div class="_30jeq3">₹2,499</div>
<span class="_13vcmD">1,024 Reviews</span></body></html>`

	rec, err := New(FlipkartProfile()).Extract(parse(t, html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Price != 2499.0 {
		t.Errorf("Price = %v, want 2499", rec.Price)
	}
	if rec.Reviews != 1024 {
		t.Errorf("Reviews = %v, want 1024", rec.Reviews)
	}
}

func TestExtract_NoPriceIsNotFailure(t *testing.T) {
	html := `<html><body><h1>Mystery Box</h1><p>Currently unavailable</p></body></html>`

	rec, err := New(FlipkartProfile()).Extract(parse(t, html))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Price != 0 || rec.PriceFound() {
		t.Errorf("Price = %v, want sentinel 0", rec.Price)
	}
	if rec.Rating != 0 || rec.Reviews != 0 || rec.Image != "" {
		t.Errorf("expected sentinels, got %+v", *rec)
	}
}

func TestExtract_NoTitleFails(t *testing.T) {
	html := `<html><body><div class="_30jeq3">₹2,499</div><span class="_13vcmD">10 Reviews</span></body></html>`

	var snaps []Snapshot
	ex := New(FlipkartProfile(), WithObserver(ObserverFunc(func(s Snapshot) {
		snaps = append(snaps, s)
	})))

	rec, err := ex.Extract(parse(t, html))
	if rec != nil {
		t.Errorf("expected no record, got %+v", *rec)
	}
	if !errors.Is(err, ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeExtractionFailed {
		t.Errorf("err = %#v, want ScrapeError with code %s", err, models.ErrCodeExtractionFailed)
	}

	if len(snaps) != 1 || !snaps[0].Failed {
		t.Fatalf("observer got %+v, want one failed snapshot", snaps)
	}
	if len(snaps[0].Fields) != 1 || snaps[0].Fields[0].Field != "title" {
		t.Errorf("failed snapshot should only trace the title, got %+v", snaps[0].Fields)
	}
}

func TestExtract_ObserverDoesNotChangeResult(t *testing.T) {
	doc := parse(t, productPage)

	plain, err := New(FlipkartProfile()).Extract(doc)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	observed, snap, err := New(FlipkartProfile(), WithObserver(LogObserver{})).ExtractWithSnapshot(doc)
	if err != nil {
		t.Fatalf("ExtractWithSnapshot: %v", err)
	}
	if *plain != *observed {
		t.Errorf("observer changed result: %+v vs %+v", *plain, *observed)
	}

	if snap.URL != "https://www.flipkart.com/samsung-galaxy-m14/p/itm123" {
		t.Errorf("snapshot URL = %q", snap.URL)
	}
	order := []string{"title", "price", "rating", "reviews", "image"}
	if len(snap.Fields) != len(order) {
		t.Fatalf("snapshot has %d fields, want %d", len(snap.Fields), len(order))
	}
	for i, f := range snap.Fields {
		if f.Field != order[i] {
			t.Errorf("field %d = %q, want %q", i, f.Field, order[i])
		}
		if !f.Found {
			t.Errorf("field %q not found", f.Field)
		}
	}
	if got := snap.Fields[0].Strategy; got != "structural" {
		t.Errorf("title strategy = %q, want structural", got)
	}
	if got := snap.Fields[1].Selector; got != "div._30jeq3._16Jk6d" {
		t.Errorf("price selector = %q", got)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	yml := `name: flipkart-beta
title:
  - name: beta
    selectors: ["h2.product-name"]
reviews: ["p.review-count"]
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if p.Name != "flipkart-beta" || len(p.Title) != 1 || p.Title[0].Selectors[0] != "h2.product-name" {
		t.Errorf("title override not applied: %+v", p.Title)
	}
	if len(p.Reviews) != 1 {
		t.Errorf("reviews = %v, want override", p.Reviews)
	}
	if len(p.Price.Direct) == 0 || p.Image.MinWidth != 100 {
		t.Error("unspecified tables should keep built-in values")
	}

	rec, err := New(p).Extract(parse(t, `<html><body><h2 class="product-name">Beta</h2><p class="review-count">3 reviews</p></body></html>`))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Title != "Beta" || rec.Reviews != 3 {
		t.Errorf("got %+v", *rec)
	}
}

func TestValidateURL(t *testing.T) {
	p := FlipkartProfile()

	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://www.flipkart.com/samsung-galaxy/p/itm123?pid=MOB", false},
		{"https://WWW.FLIPKART.COM/x/p/itm1", false},
		{"https://www.flipkart.com/search?q=phone", true},
		{"https://www.amazon.in/x/p/itm1", true},
		{"flipkart.com/x/p/1", true},
		{"::not a url", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := p.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) err = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil {
				var se *models.ScrapeError
				if !errors.As(err, &se) || se.Code != models.ErrCodeInvalidURL {
					t.Errorf("err = %v, want code %s", err, models.ErrCodeInvalidURL)
				}
			}
		})
	}
}
