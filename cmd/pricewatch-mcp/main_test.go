package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/use-agent/pricewatch/models"
)

func TestAPIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/products":
			if got := r.URL.Query().Get("q"); got != "galaxy" {
				t.Errorf("q = %q", got)
			}
			json.NewEncoder(w).Encode(models.ProductListResponse{
				Success:  true,
				Products: []models.Product{{ID: 3, Title: "Galaxy", Price: 999}},
				Count:    1,
			})
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/products/9":
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(models.ErrorResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "product 9 not found"},
			})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := newAPIClient(srv.URL, "k")

	list, err := c.list(context.Background(), models.ListQuery{Query: "galaxy"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Count != 1 || list.Products[0].ID != 3 {
		t.Errorf("list = %+v", list)
	}

	err = c.untrack(context.Background(), 9)
	var ae *apiError
	if !errors.As(err, &ae) {
		t.Fatalf("untrack err = %v, want *apiError", err)
	}
	if ae.Status != http.StatusNotFound || ae.Detail.Code != models.ErrCodeNotFound {
		t.Errorf("apiError = %+v", ae)
	}
	if !strings.Contains(err.Error(), "NOT_FOUND") {
		t.Errorf("error text %q", err.Error())
	}
}

func TestFormatProduct(t *testing.T) {
	out := formatProduct(&models.Product{ID: 4, Title: "Phone", Price: 0, Rating: 4.3, Reviews: 12, URL: "u"})
	for _, want := range []string{"ID: 4", "Price: unavailable", "Rating: 4.3 (12 reviews)", "URL: u"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if formatPrice(13490) != "₹13490.00" {
		t.Errorf("formatPrice = %q", formatPrice(13490))
	}
}

func TestNumberArg(t *testing.T) {
	args := map[string]any{"id": float64(7), "neg": float64(-1), "str": "5"}
	if numberArg(args, "id") != 7 || numberArg(args, "neg") != 0 || numberArg(args, "str") != 0 || numberArg(args, "missing") != 0 {
		t.Error("numberArg mismatch")
	}
}
