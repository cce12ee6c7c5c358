// Package tracker is the product-tracking service: it renders product
// pages, runs extraction and keeps the store and price history current.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/use-agent/pricewatch/cache"
	"github.com/use-agent/pricewatch/cleaner"
	"github.com/use-agent/pricewatch/dom"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/layout"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/scraper"
	"github.com/use-agent/pricewatch/store"
	"github.com/use-agent/pricewatch/webhook"
)

// PageLoader renders a product page. *scraper.Scraper satisfies it.
type PageLoader interface {
	Load(ctx context.Context, req *scraper.LoadRequest) (*scraper.PageResult, error)
}

// Options tunes the service.
type Options struct {
	// RetryDelays are the waits between load+extract attempts.
	RetryDelays []time.Duration

	// DriftThreshold is the layout distance that flags a refresh.
	DriftThreshold int

	// LoadTimeout bounds each attempt. Zero leaves it to the loader.
	LoadTimeout time.Duration

	// ExcerptRunes bounds the debug excerpt.
	ExcerptRunes int
}

// Service is safe for concurrent use.
type Service struct {
	store     *store.Store
	loader    PageLoader
	profile   extract.Profile
	extractor *extract.Extractor
	opts      Options

	notifier *webhook.Notifier
	previews *cache.Cache[*Preview]
	cleaner  *cleaner.Cleaner

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures optional collaborators.
type Option func(*Service)

func WithNotifier(n *webhook.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithPreviewCache(c *cache.Cache[*Preview]) Option {
	return func(s *Service) { s.previews = c }
}

func WithCleaner(c *cleaner.Cleaner) Option {
	return func(s *Service) { s.cleaner = c }
}

// WithObserver forwards every extraction snapshot to o.
func WithObserver(o extract.Observer) Option {
	return func(s *Service) { s.extractor = extract.New(s.profile, extract.WithObserver(o)) }
}

func New(st *store.Store, loader PageLoader, profile extract.Profile, opts Options, options ...Option) *Service {
	s := &Service{
		store:     st,
		loader:    loader,
		profile:   profile,
		extractor: extract.New(profile),
		opts:      opts,
		now:       time.Now,
		sleep:     sleepCtx,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// RefreshResult reports what a refresh changed.
type RefreshResult struct {
	Product      *store.Product
	OldPrice     float64
	PriceChanged bool
}

// Preview is a one-off extraction that is not persisted.
type Preview struct {
	URL         string
	Record      extract.Record
	Snapshot    extract.Snapshot
	EngineUsed  string
	Fingerprint uint64
	Excerpt     string
	Navigation  time.Duration
	Extraction  time.Duration
	CachedAt    time.Time
}

// PreviewOptions controls a preview.
type PreviewOptions struct {
	URL       string
	FetchMode string
	Timeout   time.Duration
	MaxAge    time.Duration
	Debug     bool
}

// Track validates, renders and stores a new product.
func (s *Service) Track(ctx context.Context, rawURL string) (*store.Product, error) {
	u, err := s.normalize(rawURL)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetByURL(ctx, u); err == nil {
		return nil, alreadyTracked(u)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, internal("lookup product", err)
	}

	res, err := s.load(ctx, u, "", s.opts.LoadTimeout)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := &store.Product{
		URL:         u,
		Title:       res.record.Title,
		Price:       res.record.Price,
		Rating:      res.record.Rating,
		Reviews:     res.record.Reviews,
		Image:       res.record.Image,
		Fingerprint: res.fingerprint,
		LastChecked: now,
		CreatedAt:   now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, alreadyTracked(u)
		}
		return nil, internal("save product", err)
	}

	slog.Info("product tracked", "id", p.ID, "url", u, "title", p.Title, "price", p.Price, "engine", res.engine)
	return p, nil
}

// Refresh re-extracts a tracked product and records the new price.
func (s *Service) Refresh(ctx context.Context, id int64) (*RefreshResult, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	res, err := s.load(ctx, p.URL, "", s.opts.LoadTimeout)
	if err != nil {
		s.markFailed(ctx, p)
		return nil, err
	}

	out := &RefreshResult{OldPrice: p.Price}
	drift := layout.Drifted(p.Fingerprint, res.fingerprint, s.opts.DriftThreshold)
	if drift {
		slog.Warn("product page layout drifted",
			"id", p.ID, "url", p.URL,
			"distance", layout.Distance(p.Fingerprint, res.fingerprint),
			"previous", layout.Hex(p.Fingerprint), "current", layout.Hex(res.fingerprint))
	}

	updated := *p
	updated.Title = res.record.Title
	updated.Price = res.record.Price
	updated.Rating = res.record.Rating
	updated.Reviews = res.record.Reviews
	updated.Image = res.record.Image
	updated.Fingerprint = res.fingerprint
	updated.LayoutDrift = drift
	updated.LastChecked = s.now()

	if err := s.store.Update(ctx, &updated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, internal("update product", err)
	}
	out.Product = &updated

	// Both prices must be real: a sentinel 0 on either side is not a change.
	if p.Price > 0 && updated.Price > 0 && p.Price != updated.Price {
		out.PriceChanged = true
		slog.Info("price changed", "id", p.ID, "old", p.Price, "new", updated.Price)
		s.notifier.Notify(webhook.NewPriceChanged(p.ID, webhook.PriceChange{
			URL:      p.URL,
			Title:    updated.Title,
			OldPrice: p.Price,
			NewPrice: updated.Price,
		}))
	}
	return out, nil
}

// markFailed records a failed refresh attempt so the product yields its
// place in the stale queue. Cancellation is not the product's fault.
func (s *Service) markFailed(ctx context.Context, p *store.Product) {
	if ctx.Err() != nil {
		return
	}
	if err := s.store.MarkFailed(ctx, p.ID, s.now()); err != nil {
		slog.Warn("recording failed refresh", "id", p.ID, "error", err)
		return
	}
	if p.Failures+1 >= 3 {
		slog.Warn("product keeps failing to refresh", "id", p.ID, "url", p.URL, "failures", p.Failures+1)
	}
}

// Preview extracts a product page without storing it.
func (s *Service) Preview(ctx context.Context, o PreviewOptions) (*Preview, bool, error) {
	u, err := s.normalize(o.URL)
	if err != nil {
		return nil, false, err
	}

	key := cache.Key(u, o.FetchMode, fmt.Sprint(o.Debug))
	if s.previews != nil {
		if pv, ok := s.previews.Get(key, o.MaxAge); ok {
			return pv, true, nil
		}
	}

	res, err := s.load(ctx, u, o.FetchMode, o.Timeout)
	if err != nil {
		return nil, false, err
	}

	pv := &Preview{
		URL:         u,
		Record:      *res.record,
		Snapshot:    res.snapshot,
		EngineUsed:  res.engine,
		Fingerprint: res.fingerprint,
		Navigation:  res.navigation,
		Extraction:  res.extraction,
		CachedAt:    s.now(),
	}
	if o.Debug && s.cleaner != nil {
		pv.Excerpt = s.cleaner.Excerpt(res.html, u, s.opts.ExcerptRunes)
	}
	if s.previews != nil {
		s.previews.Set(key, pv)
	}
	return pv, false, nil
}

// Get returns a tracked product.
func (s *Service) Get(ctx context.Context, id int64) (*store.Product, error) {
	p, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, internal("load product", err)
	}
	return p, nil
}

// History returns a product's recorded prices, oldest first.
func (s *Service) History(ctx context.Context, id int64) ([]store.PricePoint, error) {
	h, err := s.store.History(ctx, id)
	if err != nil {
		return nil, internal("load price history", err)
	}
	return h, nil
}

// List returns tracked products newest first.
func (s *Service) List(ctx context.Context, f store.Filter) ([]store.Product, error) {
	ps, err := s.store.List(ctx, f)
	if err != nil {
		return nil, internal("list products", err)
	}
	return ps, nil
}

// Delete stops tracking a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return notFound(id)
	}
	if err != nil {
		return internal("delete product", err)
	}
	return nil
}

// Count returns the number of tracked products.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// normalize validates rawURL against the profile and drops the fragment.
func (s *Service) normalize(rawURL string) (string, error) {
	if err := s.profile.ValidateURL(rawURL); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeInvalidURL, "invalid product URL", err)
	}
	u.Fragment = ""
	return u.String(), nil
}

type loadResult struct {
	record      *extract.Record
	snapshot    extract.Snapshot
	html        string
	engine      string
	fingerprint uint64
	navigation  time.Duration
	extraction  time.Duration
}

// load renders and extracts with retries. Dynamic pages may not have
// settled on the first render, so extraction failures and navigation
// errors are retried after each configured delay.
func (s *Service) load(ctx context.Context, u, mode string, timeout time.Duration) (*loadResult, error) {
	attempts := len(s.opts.RetryDelays) + 1

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.opts.RetryDelays[attempt-1]); err != nil {
				return nil, models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
			}
		}

		res, err := s.loadOnce(ctx, u, mode, timeout)
		if err == nil {
			if attempt > 0 {
				slog.Info("extraction succeeded after retry", "url", u, "attempt", attempt+1)
			}
			return res, nil
		}
		lastErr = err
		slog.Warn("extraction attempt failed", "url", u, "attempt", attempt+1, "of", attempts, "error", err)

		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (s *Service) loadOnce(ctx context.Context, u, mode string, timeout time.Duration) (*loadResult, error) {
	page, err := s.loader.Load(ctx, &scraper.LoadRequest{
		URL:           u,
		Timeout:       timeout,
		WaitSelectors: s.profile.WaitSelectors,
		FetchMode:     mode,
	})
	if err != nil {
		return nil, err
	}

	base := page.FinalURL
	if base == "" {
		base = u
	}
	doc, err := dom.Parse(page.HTML, base)
	if err != nil {
		return nil, internal("parse page", err)
	}

	start := time.Now()
	rec, snap, err := s.extractor.ExtractWithSnapshot(doc)
	if err != nil {
		return nil, err
	}
	snap.URL = u

	return &loadResult{
		record:      rec,
		snapshot:    snap,
		html:        page.HTML,
		engine:      page.EngineUsed,
		fingerprint: layout.Fingerprint(page.HTML),
		navigation:  page.Elapsed,
		extraction:  time.Since(start),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func alreadyTracked(u string) error {
	return models.NewScrapeError(models.ErrCodeAlreadyTracked, "product is already tracked: "+u, store.ErrDuplicate)
}

func notFound(id int64) error {
	return models.NewScrapeError(models.ErrCodeNotFound, fmt.Sprintf("product %d not found", id), store.ErrNotFound)
}

func internal(op string, err error) error {
	return models.NewScrapeError(models.ErrCodeInternal, op+" failed", err)
}
