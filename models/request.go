package models

// TrackRequest is the payload for POST /api/v1/products.
type TrackRequest struct {
	// URL is the product page to track. Required.
	URL string `json:"url" binding:"required,url"`
}

// PreviewRequest is the payload for POST /api/v1/extract.
type PreviewRequest struct {
	// URL is the product page to extract. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for rendering plus extraction.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// MaxAge allows a cached preview no older than this many seconds.
	// 0 (default) always renders fresh.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// Debug adds the per-field diagnostic trace and a markdown excerpt
	// of the page to the response.
	Debug bool `json:"debug,omitempty"`

	// FetchMode controls the fetching strategy.
	// "auto" (default): try HTTP first, fall back to browser if the page
	// needs JS. "http": pure HTTP. "browser": headless Chrome only.
	FetchMode string `json:"fetch_mode,omitempty" binding:"omitempty,oneof=auto browser http"`
}

// Defaults applies default values to unset fields.
func (r *PreviewRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
	if r.FetchMode == "" {
		r.FetchMode = "auto"
	}
}

// ListQuery holds the optional filters for GET /api/v1/products.
type ListQuery struct {
	MinPrice float64 `form:"min_price" binding:"omitempty,min=0"`
	MaxPrice float64 `form:"max_price" binding:"omitempty,min=0"`
	Query    string  `form:"q"`
	Limit    int     `form:"limit" binding:"omitempty,min=1,max=500"`
}
