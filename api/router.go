package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/api/handler"
	"github.com/use-agent/pricewatch/api/middleware"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/tracker"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work. ctx bounds
// the rate limiter's background sweep.
func NewRouter(ctx context.Context, svc *tracker.Service, pool handler.PoolReporter, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(pool, svc, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	// Tracked products
	protected.POST("/products", handler.TrackProduct(svc))
	protected.GET("/products", handler.ListProducts(svc))
	protected.GET("/products/:id", handler.GetProduct(svc))
	protected.DELETE("/products/:id", handler.DeleteProduct(svc))
	protected.POST("/products/:id/refresh", handler.RefreshProduct(svc))

	// One-off extraction, not persisted
	protected.POST("/extract", handler.Preview(svc))

	return r
}
