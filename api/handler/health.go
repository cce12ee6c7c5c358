package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/models"
	"github.com/use-agent/pricewatch/tracker"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// PoolReporter exposes browser pool utilisation. *scraper.Scraper satisfies it.
type PoolReporter interface {
	Stats() models.PoolStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of browser pages are busy or the
// product store cannot be read.
func Health(pool PoolReporter, svc *tracker.Service, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if pool != nil {
			stats = pool.Stats()
		}

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		tracked, err := svc.Count(c.Request.Context())
		if err != nil {
			slog.Warn("health: counting products failed", "error", err)
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Tracked:   tracked,
			Version:   Version,
		})
	}
}
