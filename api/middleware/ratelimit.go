package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricewatch/config"
	"github.com/use-agent/pricewatch/models"
	"golang.org/x/time/rate"
)

const (
	limiterIdle  = time.Hour
	limiterSweep = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one token bucket per identity.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rps      rate.Limit
	burst    int
	now      func() time.Time
}

func newLimiterSet(cfg config.RateLimitConfig) *limiterSet {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet{
		limiters: make(map[string]*limiterEntry),
		rps:      rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (s *limiterSet) allow(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	entry, ok := s.limiters[identity]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[identity] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evict drops identities not seen since cutoff.
func (s *limiterSet) evict(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(s.limiters, id)
		}
	}
}

func (s *limiterSet) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evict(s.now().Add(-limiterIdle))
		}
	}
}

// RateLimit returns per-identity (API key or IP) token-bucket rate limiting
// middleware powered by golang.org/x/time/rate. Idle identities are evicted
// until ctx is done.
func RateLimit(ctx context.Context, cfg config.RateLimitConfig) gin.HandlerFunc {
	set := newLimiterSet(cfg)
	go set.sweepLoop(ctx)
	return set.handler()
}

func (s *limiterSet) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prefer the API key set by Auth; fall back to the client IP.
		identity := c.GetString(identityKey)
		if identity == "" {
			identity = c.ClientIP()
		}

		if !s.allow(identity) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeRateLimited,
					Message: "rate limit exceeded, please slow down",
				},
			})
			return
		}
		c.Next()
	}
}
