package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
	Engine    EngineConfig
	Store     StoreConfig
	Tracker   TrackerConfig
	Webhook   WebhookConfig
	Extract   ExtractConfig
}

// EngineConfig controls the multi-engine racing dispatcher.
type EngineConfig struct {
	// EnableMultiEngine toggles the multi-engine dispatcher.
	EnableMultiEngine bool // default: true

	// EscalationDelays is the staged start delay for each engine tier.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// HTTPTimeout is the deadline for the pure HTTP engine.
	HTTPTimeout time.Duration // default: 5s
}

// CacheConfig controls the preview cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached previews.
	MaxEntries int // default: 1000

	// TTL is how long a preview is kept regardless of the requested max_age.
	TTL time.Duration // default: 1h
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 5

	// DefaultProxy is the default proxy URL for all requests.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string
}

// ScraperConfig controls page loading.
type ScraperConfig struct {
	// DefaultTimeout is the per-load timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// NavigationTimeout is the max time for page.Navigate alone.
	NavigationTimeout time.Duration // default: 15s

	// ScrollPasses is how many times the page is scrolled to the bottom
	// to trigger lazy-loaded content before the snapshot.
	ScrollPasses int // default: 3

	// BlockedResourceTypes lists resource types to block. Images stay
	// allowed so rendered sizes are real.
	// default: ["Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// StoreConfig controls product persistence.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps everything in RAM.
	Path string // default: "pricewatch.db"
}

// TrackerConfig controls refreshing of tracked products.
type TrackerConfig struct {
	// RefreshInterval is how often the scheduler looks for stale products.
	// 0 disables background refresh.
	RefreshInterval time.Duration // default: 1h

	// StaleAfter is the age of last_checked after which a product is refreshed.
	StaleAfter time.Duration // default: 6h

	// Workers bounds concurrent background refreshes.
	Workers int // default: 2

	// RefreshRPS paces background refreshes.
	RefreshRPS float64 // default: 0.5

	// RetryDelays are the waits between extraction attempts. The number
	// of attempts is len(RetryDelays)+1.
	RetryDelays []time.Duration // default: [2s, 5s]
}

// WebhookConfig controls price-change notifications.
type WebhookConfig struct {
	// URL receives price.changed events. Empty disables notifications.
	URL string

	// Secret signs payloads with HMAC-SHA256.
	Secret string
}

// ExtractConfig controls attribute extraction.
type ExtractConfig struct {
	// ProfileFile is an optional YAML file overriding the built-in site profile.
	ProfileFile string

	// LayoutDriftThreshold is the SimHash Hamming distance above which a
	// refresh is flagged as a layout change.
	LayoutDriftThreshold int // default: 12
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICEWATCH_HOST", "0.0.0.0"),
			Port: envIntOr("PRICEWATCH_PORT", 8080),
			Mode: envOr("PRICEWATCH_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PRICEWATCH_HEADLESS", true),
			MaxPages:     envIntOr("PRICEWATCH_MAX_PAGES", 5),
			DefaultProxy: os.Getenv("PRICEWATCH_PROXY"),
			NoSandbox:    envBoolOr("PRICEWATCH_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PRICEWATCH_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:       envDurationOr("PRICEWATCH_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:           envDurationOr("PRICEWATCH_MAX_TIMEOUT", 120*time.Second),
			NavigationTimeout:    envDurationOr("PRICEWATCH_NAV_TIMEOUT", 15*time.Second),
			ScrollPasses:         envIntOr("PRICEWATCH_SCROLL_PASSES", 3),
			BlockedResourceTypes: envSliceOr("PRICEWATCH_BLOCKED_RESOURCES", []string{"Font", "Media"}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICEWATCH_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRICEWATCH_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICEWATCH_RATE_RPS", 5.0),
			Burst:             envIntOr("PRICEWATCH_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("PRICEWATCH_CACHE_MAX_ENTRIES", 1000),
			TTL:        envDurationOr("PRICEWATCH_CACHE_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  envOr("PRICEWATCH_LOG_LEVEL", "info"),
			Format: envOr("PRICEWATCH_LOG_FORMAT", "json"),
		},
		Engine: EngineConfig{
			EnableMultiEngine: envBoolOr("PRICEWATCH_MULTI_ENGINE", true),
			EscalationDelays:  envDurationSliceOr("PRICEWATCH_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			HTTPTimeout:       envDurationOr("PRICEWATCH_HTTP_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			Path: envOr("PRICEWATCH_DB_PATH", "pricewatch.db"),
		},
		Tracker: TrackerConfig{
			RefreshInterval: envDurationOr("PRICEWATCH_REFRESH_INTERVAL", time.Hour),
			StaleAfter:      envDurationOr("PRICEWATCH_STALE_AFTER", 6*time.Hour),
			Workers:         envIntOr("PRICEWATCH_REFRESH_WORKERS", 2),
			RefreshRPS:      envFloatOr("PRICEWATCH_REFRESH_RPS", 0.5),
			RetryDelays:     envDurationSliceOr("PRICEWATCH_RETRY_DELAYS", []time.Duration{2 * time.Second, 5 * time.Second}),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICEWATCH_WEBHOOK_URL"),
			Secret: os.Getenv("PRICEWATCH_WEBHOOK_SECRET"),
		},
		Extract: ExtractConfig{
			ProfileFile:          os.Getenv("PRICEWATCH_PROFILE_FILE"),
			LayoutDriftThreshold: envIntOr("PRICEWATCH_LAYOUT_DRIFT_THRESHOLD", 12),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
