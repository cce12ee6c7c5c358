package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pricewatch/api"
	"github.com/use-agent/pricewatch/cache"
	"github.com/use-agent/pricewatch/cleaner"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/engine"
	"github.com/use-agent/pricewatch/extract"
	"github.com/use-agent/pricewatch/scraper"
	"github.com/use-agent/pricewatch/store"
	"github.com/use-agent/pricewatch/tracker"
	"github.com/use-agent/pricewatch/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pricewatch starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
		"db", cfg.Store.Path,
	)

	// ── 3. Site profile ─────────────────────────────────────────────
	profile := extract.FlipkartProfile()
	if cfg.Extract.ProfileFile != "" {
		p, err := extract.LoadProfile(cfg.Extract.ProfileFile)
		if err != nil {
			slog.Error("failed to load site profile", "file", cfg.Extract.ProfileFile, "error", err)
			os.Exit(1)
		}
		profile = p
		slog.Info("site profile loaded", "name", profile.Name, "file", cfg.Extract.ProfileFile)
	}

	// ── 4. Initialise scraper (launches browser) ────────────────────
	sc, err := scraper.NewScraper(cfg.Browser, cfg.Scraper)
	if err != nil {
		slog.Error("failed to initialise scraper", "error", err)
		os.Exit(1)
	}
	defer sc.Close()

	// ── 4b. Multi-engine dispatcher ─────────────────────────────────
	if cfg.Engine.EnableMultiEngine {
		// The render callback keeps engine/ free of a scraper/ import.
		render := sc.RenderFunc()
		engines := []engine.Engine{
			engine.NewHTTPEngine(cfg.Engine.HTTPTimeout),
			engine.NewRodEngine(render, false),
			engine.NewRodEngine(render, true),
		}
		memory := engine.NewDomainMemory(24 * time.Hour)
		defer memory.Stop()

		sc.SetDispatcher(engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, memory))
		slog.Info("multi-engine dispatcher enabled",
			"engines", len(engines),
			"delays", cfg.Engine.EscalationDelays,
		)
	}

	// ── 5. Store ────────────────────────────────────────────────────
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		slog.Error("failed to open product store", "path", cfg.Store.Path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// ── 6. Tracker service ──────────────────────────────────────────
	previews := cache.New[*tracker.Preview](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	defer previews.Stop()

	notifier := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret)
	if notifier.Enabled() {
		slog.Info("price-change webhook enabled", "url", cfg.Webhook.URL)
	}

	svc := tracker.New(st, sc, profile, tracker.Options{
		RetryDelays:    cfg.Tracker.RetryDelays,
		DriftThreshold: cfg.Extract.LayoutDriftThreshold,
		LoadTimeout:    cfg.Scraper.DefaultTimeout,
	},
		tracker.WithNotifier(notifier),
		tracker.WithPreviewCache(previews),
		tracker.WithCleaner(cleaner.NewCleaner()),
		tracker.WithObserver(extract.LogObserver{}),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// ── 7. Background refresh ───────────────────────────────────────
	sched := tracker.NewScheduler(svc, svc, tracker.SchedulerConfig{
		Interval:   cfg.Tracker.RefreshInterval,
		StaleAfter: cfg.Tracker.StaleAfter,
		Workers:    cfg.Tracker.Workers,
		RPS:        cfg.Tracker.RefreshRPS,
	})
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		sched.Run(ctx)
	}()

	// ── 8. Setup router and start HTTP server ──────────────────────
	router := api.NewRouter(ctx, svc, sc, cfg, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	<-schedDone
	if err := notifier.Shutdown(shutdownCtx); err != nil {
		slog.Warn("webhook deliveries aborted on shutdown", "error", err)
	}

	// Deferred closers drain the page pool, kill Chrome and close the store.
	slog.Info("pricewatch stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
