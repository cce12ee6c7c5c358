// Package extract is the resilient attribute-extraction engine: it resolves
// title, price, rating, review count and image from a rendered product page
// through ordered, short-circuiting strategy chains.
//
// Only the title is mandatory. Every other field degrades to a sentinel:
// 0 for price, rating and reviews, "" for image. A sentinel 0 cannot be told
// apart from a genuine zero.
package extract

import (
	"errors"
	"log/slog"

	"github.com/use-agent/pricewatch/dom"
	"github.com/use-agent/pricewatch/models"
)

// ErrExtractionFailed is wrapped by the error Extract returns when no title
// strategy matched.
var ErrExtractionFailed = errors.New("extract: product title not found")

// Record is the immutable result of one successful extraction.
type Record struct {
	Title   string
	Price   float64 // 0 = not found
	Rating  float64 // [0, 5], one decimal; 0 = not found
	Reviews int     // 0 = not found
	Image   string  // "" = not found
}

// PriceFound reports whether a price was resolved.
func (r *Record) PriceFound() bool { return r.Price > 0 }

// FieldTrace records how one field was resolved.
type FieldTrace struct {
	Field    string `json:"field"`
	Found    bool   `json:"found"`
	Strategy string `json:"strategy,omitempty"`
	Selector string `json:"selector,omitempty"`
	Raw      string `json:"raw,omitempty"`
	Value    any    `json:"value"`
	Attempts int    `json:"attempts"`
}

// Snapshot is the diagnostic view of one extraction. It is informational
// only.
type Snapshot struct {
	URL    string       `json:"url,omitempty"`
	Failed bool         `json:"failed"`
	Fields []FieldTrace `json:"fields"`
}

// Observer receives a Snapshot after every extraction, successful or not.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Snapshot)

func (f ObserverFunc) Observe(s Snapshot) { f(s) }

// LogObserver writes snapshots to slog at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(s Snapshot) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"url", s.URL, "failed", s.Failed}
	for _, f := range s.Fields {
		attrs = append(attrs, slog.Group(f.Field,
			"found", f.Found,
			"strategy", f.Strategy,
			"selector", f.Selector,
			"raw", f.Raw,
			"value", f.Value,
			"attempts", f.Attempts,
		))
	}
	logger.Debug("extraction snapshot", attrs...)
}

// Extractor runs the five field chains. It holds only immutable chains and
// is safe for concurrent use; each call works on its own Document.
type Extractor struct {
	title    Chain[string]
	price    Chain[float64]
	rating   Chain[float64]
	reviews  Chain[int]
	image    Chain[string]
	observer Observer
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithObserver attaches a diagnostic observer.
func WithObserver(o Observer) Option {
	return func(e *Extractor) { e.observer = o }
}

// New builds an Extractor from a site profile.
func New(p Profile, opts ...Option) *Extractor {
	e := &Extractor{
		title:   TitleChain(p),
		price:   PriceChain(p),
		rating:  RatingChain(p),
		reviews: ReviewChain(p),
		image:   ImageChain(p),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract resolves a Record from doc. It fails only when the title chain is
// exhausted, returning a *models.ScrapeError with code EXTRACTION_FAILED that
// wraps ErrExtractionFailed, and no record.
func (e *Extractor) Extract(doc dom.Document) (*Record, error) {
	rec, _, err := e.ExtractWithSnapshot(doc)
	return rec, err
}

// ExtractWithSnapshot is Extract that also returns the diagnostic snapshot.
func (e *Extractor) ExtractWithSnapshot(doc dom.Document) (*Record, Snapshot, error) {
	snap := Snapshot{}
	if u, ok := doc.(interface{ URL() string }); ok {
		snap.URL = u.URL()
	}

	// Fixed order keeps diagnostic output deterministic.
	title := e.title.Resolve(doc)
	snap.Fields = append(snap.Fields, trace(e.title.Field, title))
	if !title.Found {
		snap.Failed = true
		e.notify(snap)
		return nil, snap, models.NewScrapeError(
			models.ErrCodeExtractionFailed,
			"failed to extract product title",
			ErrExtractionFailed,
		)
	}

	price := e.price.Resolve(doc)
	rating := e.rating.Resolve(doc)
	reviews := e.reviews.Resolve(doc)
	image := e.image.Resolve(doc)

	snap.Fields = append(snap.Fields,
		trace(e.price.Field, price),
		trace(e.rating.Field, rating),
		trace(e.reviews.Field, reviews),
		trace(e.image.Field, image),
	)
	e.notify(snap)

	return &Record{
		Title:   title.Value,
		Price:   price.Value,
		Rating:  rating.Value,
		Reviews: reviews.Value,
		Image:   image.Value,
	}, snap, nil
}

func (e *Extractor) notify(s Snapshot) {
	if e.observer != nil {
		e.observer.Observe(s)
	}
}

func trace[T any](field string, o Outcome[T]) FieldTrace {
	return FieldTrace{
		Field:    field,
		Found:    o.Found,
		Strategy: o.Strategy,
		Selector: o.Selector,
		Raw:      o.Raw,
		Value:    o.Value,
		Attempts: o.Attempts,
	}
}
