package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Scraper.ScrollPasses != 3 {
		t.Errorf("Scraper.ScrollPasses = %d, want 3", cfg.Scraper.ScrollPasses)
	}
	if !reflect.DeepEqual(cfg.Tracker.RetryDelays, []time.Duration{2 * time.Second, 5 * time.Second}) {
		t.Errorf("Tracker.RetryDelays = %v", cfg.Tracker.RetryDelays)
	}
	if cfg.Extract.LayoutDriftThreshold != 12 {
		t.Errorf("Extract.LayoutDriftThreshold = %d, want 12", cfg.Extract.LayoutDriftThreshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PRICEWATCH_PORT", "9090")
	t.Setenv("PRICEWATCH_API_KEYS", "a, b,,c")
	t.Setenv("PRICEWATCH_RETRY_DELAYS", "1s,bogus,3s")
	t.Setenv("PRICEWATCH_HEADLESS", "false")
	t.Setenv("PRICEWATCH_REFRESH_RPS", "not-a-number")

	cfg := Load()

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if !reflect.DeepEqual(cfg.Auth.APIKeys, []string{"a", "b", "c"}) {
		t.Errorf("Auth.APIKeys = %v", cfg.Auth.APIKeys)
	}
	if !reflect.DeepEqual(cfg.Tracker.RetryDelays, []time.Duration{time.Second, 3 * time.Second}) {
		t.Errorf("Tracker.RetryDelays = %v", cfg.Tracker.RetryDelays)
	}
	if cfg.Browser.Headless {
		t.Error("Browser.Headless = true, want false")
	}
	if cfg.Tracker.RefreshRPS != 0.5 {
		t.Errorf("Tracker.RefreshRPS = %v, want fallback 0.5", cfg.Tracker.RefreshRPS)
	}
}
