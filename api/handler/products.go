package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/store"
	"github.com/use-agent/pricewatch/tracker"
)

// TrackProduct returns a handler for POST /api/v1/products.
func TrackProduct(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		p, err := svc.Track(c.Request.Context(), req.URL)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, models.ProductResponse{
			Success: true,
			Product: toProduct(p),
		})
	}
}

// ListProducts returns a handler for GET /api/v1/products.
//
// Query parameters: min_price, max_price, q (title substring), limit.
func ListProducts(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.ListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			badRequest(c, err.Error())
			return
		}
		if q.MaxPrice > 0 && q.MinPrice > q.MaxPrice {
			badRequest(c, "min_price must not exceed max_price")
			return
		}

		ps, err := svc.List(c.Request.Context(), store.Filter{
			MinPrice: q.MinPrice,
			MaxPrice: q.MaxPrice,
			Query:    q.Query,
			Limit:    q.Limit,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		out := make([]models.Product, 0, len(ps))
		for i := range ps {
			out = append(out, *toProduct(&ps[i]))
		}
		c.JSON(http.StatusOK, models.ProductListResponse{
			Success:  true,
			Products: out,
			Count:    len(out),
		})
	}
}

// GetProduct returns a handler for GET /api/v1/products/:id. The response
// carries the full price history.
func GetProduct(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()

		p, err := svc.Get(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		hist, err := svc.History(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.ProductResponse{
			Success: true,
			Product: toProduct(p),
			History: toHistory(hist),
		})
	}
}

// RefreshProduct returns a handler for POST /api/v1/products/:id/refresh.
func RefreshProduct(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			return
		}

		res, err := svc.Refresh(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.RefreshResponse{
			Success:      true,
			Product:      toProduct(res.Product),
			OldPrice:     res.OldPrice,
			PriceChanged: res.PriceChanged,
		})
	}
}

// DeleteProduct returns a handler for DELETE /api/v1/products/:id.
func DeleteProduct(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := productID(c)
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

func toProduct(p *store.Product) *models.Product {
	return &models.Product{
		ID:          p.ID,
		URL:         p.URL,
		Title:       p.Title,
		Price:       p.Price,
		Rating:      p.Rating,
		Reviews:     p.Reviews,
		Image:       p.Image,
		LayoutDrift: p.LayoutDrift,
		LastChecked: p.LastChecked,
		CreatedAt:   p.CreatedAt,

		RefreshFailures: p.Failures,
	}
}

func toHistory(h []store.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(h))
	for i, pp := range h {
		out[i] = models.PricePoint{Price: pp.Price, CheckedAt: pp.CheckedAt}
	}
	return out
}
