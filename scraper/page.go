package scraper

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
	"github.com/ysmood/gson"
)

const (
	waitSelectorTimeout = 10 * time.Second
	scrollPause         = 800 * time.Millisecond
)

// Load returns a rendered snapshot of the product page. With a dispatcher
// the cheapest engine that yields a ready page wins; otherwise the page is
// rendered directly in the browser.
func (s *Scraper) Load(ctx context.Context, req *LoadRequest) (*PageResult, error) {
	timeout := s.clampTimeout(req.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	if s.dispatcher == nil {
		res, err := s.render(ctx, req)
		if err != nil {
			return nil, err
		}
		res.Elapsed = time.Since(start)
		return res, nil
	}

	fr, err := s.dispatcher.Fetch(ctx, req.FetchMode, &engine.FetchRequest{
		URL:           req.URL,
		Timeout:       timeout,
		Stealth:       req.Stealth,
		WaitSelectors: req.WaitSelectors,
	})
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, categorizeError(err, "all fetch engines failed")
	}

	return &PageResult{
		HTML:       fr.HTML,
		Title:      fr.Title,
		StatusCode: fr.StatusCode,
		FinalURL:   fr.FinalURL,
		EngineUsed: fr.EngineName,
		Elapsed:    time.Since(start),
	}, nil
}

// RenderFunc adapts the browser path to engine.RodFetchFunc so rod engines
// can call it without going back through the dispatcher.
func (s *Scraper) RenderFunc() engine.RodFetchFunc {
	return func(ctx context.Context, fr *engine.FetchRequest) (*engine.FetchResult, error) {
		res, err := s.render(ctx, &LoadRequest{
			URL:           fr.URL,
			Timeout:       fr.Timeout,
			WaitSelectors: fr.WaitSelectors,
			Stealth:       fr.Stealth,
		})
		if err != nil {
			return nil, err
		}
		return &engine.FetchResult{
			HTML:       res.HTML,
			Title:      res.Title,
			StatusCode: res.StatusCode,
			FinalURL:   res.FinalURL,
		}, nil
	}
}

func (s *Scraper) clampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		d = s.scraperCfg.DefaultTimeout
	}
	if s.scraperCfg.MaxTimeout > 0 && d > s.scraperCfg.MaxTimeout {
		d = s.scraperCfg.MaxTimeout
	}
	return d
}

// render drives one browser tab through the readiness sequence:
//
//  1. acquire a pooled page, reset to about:blank on return
//  2. stealth, headers, viewport and hijack before navigation
//  3. navigate, wait for a ready selector, wait for DOM stability
//  4. scroll passes for lazy content
//  5. stamp rendered image sizes, then serialize the DOM
func (s *Scraper) render(ctx context.Context, req *LoadRequest) (*PageResult, error) {
	s.activePages.Add(1)
	defer s.activePages.Add(-1)

	page, err := s.pagePool.Get(func() (*rod.Page, error) {
		return s.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}
	// Uses the page without the request context so cleanup works after a timeout.
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		s.pagePool.Put(page)
	}()

	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}).Call(page); err != nil {
		slog.Debug("viewport override failed", "error", err)
	}
	_ = proto.NetworkSetUserAgentOverride{UserAgent: desktopUA, AcceptLanguage: "en-IN,en;q=0.9"}.Call(page)
	_ = proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(refererHeaders(req.URL))}.Call(page)

	router := setupHijack(page, s.scraperCfg.BlockedResourceTypes)
	defer func() { _ = router.Stop() }()

	p := page.Context(ctx)

	if s.scraperCfg.NavigationTimeout > 0 {
		err = p.Timeout(s.scraperCfg.NavigationTimeout).Navigate(req.URL)
	} else {
		err = p.Navigate(req.URL)
	}
	if err != nil {
		return nil, categorizeError(err, "navigation to product page failed")
	}

	waitForAny(p, req.WaitSelectors, waitSelectorTimeout)
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}

	scrollPasses(p, s.scraperCfg.ScrollPasses, scrollPause)
	annotateImageSizes(p)

	var statusCode int
	if res, evalErr := p.Eval(`() => {
		try {
			const e = performance.getEntriesByType("navigation");
			if (e.length > 0) return e[0].responseStatus || 0;
		} catch (err) {}
		return 0;
	}`); evalErr == nil {
		statusCode = res.Value.Int()
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}

	return &PageResult{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: statusCode,
		FinalURL:   finalURL,
		EngineUsed: "rod",
	}, nil
}

// refererHeaders makes the visit look like it came from a search result.
func refererHeaders(rawURL string) map[string]string {
	h := map[string]string{}
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		h["Referer"] = "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())
	}
	return h
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError maps raw errors onto coded ScrapeErrors for the API layer.
func categorizeError(err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	}
}
