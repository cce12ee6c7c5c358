package scraper

import (
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/models"
)

// desktopUA matches the 1920x1080 viewport used for rendering so the site
// serves its desktop layout.
const desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

const (
	viewportWidth  = 1920
	viewportHeight = 1080
)

// Scraper owns the browser and the page pool. It is safe for concurrent use.
type Scraper struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	browserCfg  config.BrowserConfig
	scraperCfg  config.ScraperConfig
	activePages atomic.Int32
	dispatcher  *engine.Dispatcher
}

// NewScraper launches the browser and creates the page pool.
func NewScraper(browserCfg config.BrowserConfig, scraperCfg config.ScraperConfig) (*Scraper, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.DefaultProxy != "" {
		l = l.Proxy(browserCfg.DefaultProxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("window-size"), "1920,1080")
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
	}

	slog.Info("page pool created", "maxPages", browserCfg.MaxPages)

	return &Scraper{
		browser:    browser,
		pagePool:   rod.NewPagePool(browserCfg.MaxPages),
		browserCfg: browserCfg,
		scraperCfg: scraperCfg,
	}, nil
}

// SetDispatcher enables multi-engine loading. Without a dispatcher every
// load goes straight to the browser.
func (s *Scraper) SetDispatcher(d *engine.Dispatcher) {
	s.dispatcher = d
}

// Stats returns a snapshot of the pool's current state.
func (s *Scraper) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    s.browserCfg.MaxPages,
		ActivePages: int(s.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process.
func (s *Scraper) Close() {
	slog.Info("scraper shutting down: draining page pool")
	s.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("scraper shutting down: closing browser")
	s.browser.MustClose()
	slog.Info("scraper shutdown complete")
}
