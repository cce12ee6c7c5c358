package extract

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/use-agent/pricewatch/models"
	"gopkg.in/yaml.v3"
)

// Profile holds the per-site selector tables that drive every chain.
// Chains are built from a Profile once; the Profile is not consulted again.
type Profile struct {
	Name string `yaml:"name"`

	// Hosts are the accepted product page hostnames.
	Hosts []string `yaml:"hosts"`

	// ProductPathMarker must appear in the product URL path (e.g. "/p/").
	ProductPathMarker string `yaml:"product_path_marker"`

	// WaitSelectors are handed to the scraper as page-readiness hints.
	WaitSelectors []string `yaml:"wait_selectors"`

	Title   []SelectorGroup `yaml:"title"`
	Price   PriceRules      `yaml:"price"`
	Rating  RatingRules     `yaml:"rating"`
	Reviews []string        `yaml:"reviews"`
	Image   ImageRules      `yaml:"image"`
}

// SelectorGroup is one title strategy: a named, ordered selector list.
type SelectorGroup struct {
	Name      string   `yaml:"name"`
	Selectors []string `yaml:"selectors"`
}

// PriceRules configures the three price methods.
type PriceRules struct {
	Direct          []string `yaml:"direct"`
	ClassPattern    []string `yaml:"class_pattern"`
	CurrencySymbols []string `yaml:"currency_symbols"`

	// ScanMaxRunes bounds the document scan to short texts.
	ScanMaxRunes int `yaml:"scan_max_runes"`
}

// RatingRules configures the rating chain.
type RatingRules struct {
	Candidates []RatingCandidate `yaml:"candidates"`
	StarGlyph  string            `yaml:"star_glyph"`
}

// RatingCandidate pairs a selector with its validation predicate.
// AllowStar additionally accepts text containing the star glyph.
type RatingCandidate struct {
	Selector  string `yaml:"selector"`
	AllowStar bool   `yaml:"allow_star"`
}

// ImageRules configures the image chain.
type ImageRules struct {
	Selectors []string `yaml:"selectors"`
	CDNHosts  []string `yaml:"cdn_hosts"`
	MinWidth  float64  `yaml:"min_width"`
	MinHeight float64  `yaml:"min_height"`
}

// FlipkartProfile returns the built-in profile for www.flipkart.com.
func FlipkartProfile() Profile {
	return Profile{
		Name:              "flipkart",
		Hosts:             []string{"www.flipkart.com"},
		ProductPathMarker: "/p/",
		WaitSelectors:     []string{"div._30jeq3", "div._16Jk6d", "div[class*='_30jeq3']"},
		Title: []SelectorGroup{
			{Name: "structural", Selectors: []string{"span.B_NuCI", "h1.yhB1nd", "div._35KyD6"}},
			{Name: "attribute", Selectors: []string{`h1[class*="title"]`}},
			{Name: "heading", Selectors: []string{"h1", `div[class*="title"]`}},
		},
		Price: PriceRules{
			Direct: []string{
				"div._30jeq3._16Jk6d",
				"div._16Jk6d",
				"div._30jeq3",
				"div[class*='_30jeq3']",
				"div[class*='_16Jk6d']",
				"div._3qQ9m1",
				"div.CEmiEU",
				"div[class*='price']",
				"div._3I9_wc._2p6lqe",
			},
			ClassPattern:    []string{`[class*="price"], [class*="30jeq3"], [class*="16Jk6d"]`},
			CurrencySymbols: []string{"₹"},
			ScanMaxRunes:    15,
		},
		Rating: RatingRules{
			Candidates: []RatingCandidate{
				{Selector: "div._3LWZlK"},
				{Selector: "div[class*='gUuXy-']", AllowStar: true},
				{Selector: "div._2d4LTz"},
				{Selector: "div[class*='rating']"},
			},
			StarGlyph: "★",
		},
		Reviews: []string{
			"span._2_R_DZ",
			"span[class*='_2_R_DZ']",
			"div._3I9_wc._2p6lqe",
			"span._13vcmD",
		},
		Image: ImageRules{
			Selectors: []string{
				"img._396cs4",
				"img._2r_T1I",
				"div._1AtVbE img",
				"div.CXW8mj img",
				"div._3kidJX img",
				"img[class*='_396cs4']",
				"img[class*='product-image']",
				"div[class*='image'] img",
				"div[class*='picture'] img",
				"div[class*='photo'] img",
				"img[src*='rukminim']",
				"img[src*='flixcart']",
			},
			CDNHosts:  []string{"rukminim", "flixcart"},
			MinWidth:  100,
			MinHeight: 100,
		},
	}
}

// LoadProfile reads a YAML profile. Fields left empty keep the built-in
// Flipkart values so an override file only needs the tables it changes.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("extract: read profile: %w", err)
	}

	p := FlipkartProfile()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("extract: parse profile %s: %w", path, err)
	}
	if len(p.Title) == 0 {
		return Profile{}, fmt.Errorf("extract: profile %s has no title selectors", path)
	}
	return p, nil
}

// ValidateURL checks the product URL precondition: an absolute URL on one of
// the profile hosts whose path carries the product marker.
func (p Profile) ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return models.NewScrapeError(models.ErrCodeInvalidURL, "url is not an absolute URL", err)
	}

	hostOK := false
	for _, h := range p.Hosts {
		if strings.EqualFold(u.Hostname(), h) {
			hostOK = true
			break
		}
	}
	if !hostOK {
		return models.NewScrapeError(models.ErrCodeInvalidURL,
			fmt.Sprintf("host %q is not a supported %s product host", u.Hostname(), p.Name), nil)
	}
	if p.ProductPathMarker != "" && !strings.Contains(u.Path, p.ProductPathMarker) {
		return models.NewScrapeError(models.ErrCodeInvalidURL,
			fmt.Sprintf("url is not a %s product page", p.Name), nil)
	}
	return nil
}
