package models

import "time"

// Product is a tracked product as returned by the API.
type Product struct {
	ID    int64  `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`

	// Price is 0 when no price could be found on the last check.
	Price float64 `json:"price"`

	// Rating is in [0,5]; 0 when absent.
	Rating float64 `json:"rating"`

	// Reviews is the review count; 0 when absent.
	Reviews int `json:"reviews"`

	// Image is the main product image URL; empty when absent.
	Image string `json:"image"`

	// LayoutDrift is set when the page structure diverged from the
	// previous check by more than the configured threshold.
	LayoutDrift bool `json:"layout_drift,omitempty"`

	// RefreshFailures counts failed refreshes since the last good check.
	RefreshFailures int `json:"refresh_failures,omitempty"`

	LastChecked time.Time `json:"last_checked"`
	CreatedAt   time.Time `json:"created_at"`
}

// PricePoint is one observed price.
type PricePoint struct {
	Price     float64   `json:"price"`
	CheckedAt time.Time `json:"checked_at"`
}

// ProductResponse wraps a single product.
type ProductResponse struct {
	Success bool         `json:"success"`
	Product *Product     `json:"product,omitempty"`
	History []PricePoint `json:"history,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// RefreshResponse is the response for POST /api/v1/products/:id/refresh.
type RefreshResponse struct {
	Success      bool         `json:"success"`
	Product      *Product     `json:"product,omitempty"`
	OldPrice     float64      `json:"old_price"`
	PriceChanged bool         `json:"price_changed"`
	Error        *ErrorDetail `json:"error,omitempty"`
}

// ProductListResponse is the response for GET /api/v1/products.
type ProductListResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Count    int       `json:"count"`
}

// FieldTrace describes how a single attribute was resolved.
type FieldTrace struct {
	Field    string `json:"field"`
	Found    bool   `json:"found"`
	Strategy string `json:"strategy,omitempty"`
	Selector string `json:"selector,omitempty"`
	Raw      string `json:"raw,omitempty"`
	Value    any    `json:"value"`
	Attempts int    `json:"attempts"`
}

// Diagnostics is attached to a preview when debug is requested.
type Diagnostics struct {
	Fields      []FieldTrace `json:"fields"`
	Excerpt     string       `json:"excerpt,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
}

// PreviewResponse is the response for POST /api/v1/extract.
type PreviewResponse struct {
	Success bool     `json:"success"`
	Product *Product `json:"product,omitempty"`

	// EngineUsed indicates which fetch engine produced the page
	// (e.g. "http", "rod", "rod-stealth").
	EngineUsed string `json:"engine_used,omitempty"`

	// CacheStatus is "hit" or "miss" when max_age was requested.
	CacheStatus string `json:"cache_status,omitempty"`

	Timing      TimingInfo   `json:"timing"`
	Diagnostics *Diagnostics `json:"diagnostics,omitempty"`
	Error       *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// NavigationMs is the time spent fetching and rendering the page.
	NavigationMs int64 `json:"navigation_ms"`

	// ExtractionMs is the time spent resolving attributes.
	ExtractionMs int64 `json:"extraction_ms"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Tracked   int       `json:"tracked"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
	BrowserPID  int `json:"browser_pid"`
}
