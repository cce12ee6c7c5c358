package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/use-agent/pricewatch/models"
)

// apiClient calls the pricewatch HTTP API.
type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 180 * time.Second},
	}
}

// apiError is a non-2xx response from the API.
type apiError struct {
	Status int
	Detail *models.ErrorDetail
}

func (e *apiError) Error() string {
	if e.Detail != nil {
		return fmt.Sprintf("[%s] %s", e.Detail.Code, e.Detail.Message)
	}
	return fmt.Sprintf("API returned status %d", e.Status)
}

// do sends a request and decodes a 2xx body into out. out may be nil.
func (c *apiClient) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var er models.ErrorResponse
		_ = json.Unmarshal(raw, &er)
		return &apiError{Status: resp.StatusCode, Detail: er.Error}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *apiClient) track(ctx context.Context, productURL string) (*models.ProductResponse, error) {
	var out models.ProductResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/products", models.TrackRequest{URL: productURL}, &out)
	return &out, err
}

func (c *apiClient) list(ctx context.Context, q models.ListQuery) (*models.ProductListResponse, error) {
	v := url.Values{}
	if q.MinPrice > 0 {
		v.Set("min_price", fmt.Sprint(q.MinPrice))
	}
	if q.MaxPrice > 0 {
		v.Set("max_price", fmt.Sprint(q.MaxPrice))
	}
	if q.Query != "" {
		v.Set("q", q.Query)
	}
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}
	path := "/api/v1/products"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var out models.ProductListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return &out, err
}

func (c *apiClient) get(ctx context.Context, id int64) (*models.ProductResponse, error) {
	var out models.ProductResponse
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", id), nil, &out)
	return &out, err
}

func (c *apiClient) refresh(ctx context.Context, id int64) (*models.RefreshResponse, error) {
	var out models.RefreshResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/products/%d/refresh", id), nil, &out)
	return &out, err
}

func (c *apiClient) untrack(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/products/%d", id), nil, nil)
}

func (c *apiClient) preview(ctx context.Context, req models.PreviewRequest) (*models.PreviewResponse, error) {
	var out models.PreviewResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/extract", req, &out)
	return &out, err
}
