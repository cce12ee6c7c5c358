package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/layout"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/tracker"
)

// Preview returns a handler for POST /api/v1/extract.
//
// Flow:
//  1. Bind and default the request.
//  2. tracker.Preview: cache lookup, render, extract (nothing is stored).
//  3. Attach timing, cache status and, on debug, the field trace.
func Preview(svc *tracker.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.PreviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		req.Defaults()

		pv, hit, err := svc.Preview(c.Request.Context(), tracker.PreviewOptions{
			URL:       req.URL,
			FetchMode: req.FetchMode,
			Timeout:   time.Duration(req.Timeout) * time.Second,
			MaxAge:    time.Duration(req.MaxAge) * time.Second,
			Debug:     req.Debug,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		resp := models.PreviewResponse{
			Success: true,
			Product: &models.Product{
				URL:         pv.URL,
				Title:       pv.Record.Title,
				Price:       pv.Record.Price,
				Rating:      pv.Record.Rating,
				Reviews:     pv.Record.Reviews,
				Image:       pv.Record.Image,
				LastChecked: pv.CachedAt,
			},
			EngineUsed: pv.EngineUsed,
			Timing: models.TimingInfo{
				TotalMs: time.Since(start).Milliseconds(),
			},
		}
		if !hit {
			resp.Timing.NavigationMs = pv.Navigation.Milliseconds()
			resp.Timing.ExtractionMs = pv.Extraction.Milliseconds()
		}
		if req.MaxAge > 0 {
			resp.CacheStatus = "miss"
			if hit {
				resp.CacheStatus = "hit"
			}
		}
		if req.Debug {
			resp.Diagnostics = diagnostics(pv)
		}

		c.JSON(http.StatusOK, resp)
	}
}

func diagnostics(pv *tracker.Preview) *models.Diagnostics {
	d := &models.Diagnostics{
		Fields:      make([]models.FieldTrace, 0, len(pv.Snapshot.Fields)),
		Excerpt:     pv.Excerpt,
		Fingerprint: layout.Hex(pv.Fingerprint),
	}
	for _, f := range pv.Snapshot.Fields {
		d.Fields = append(d.Fields, models.FieldTrace{
			Field:    f.Field,
			Found:    f.Found,
			Strategy: f.Strategy,
			Selector: f.Selector,
			Raw:      f.Raw,
			Value:    f.Value,
			Attempts: f.Attempts,
		})
	}
	return d
}
