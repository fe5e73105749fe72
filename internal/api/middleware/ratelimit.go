package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/moltworks/molt-oracle/internal/logger"
)

// limiterIdleTTL is how long an idle client's limiter is kept before pruning
const limiterIdleTTL = 2 * time.Hour

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit returns a gin middleware allowing perHour requests per client IP,
// enforced with a token bucket whose burst equals the hourly allowance.
// perHour <= 0 disables the limit.
func RateLimit(perHour int) gin.HandlerFunc {
	if perHour <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	var mu sync.Mutex
	limiters := make(map[string]*ipLimiter)
	refill := rate.Every(time.Hour / time.Duration(perHour))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		l, ok := limiters[ip]
		if !ok {
			l = &ipLimiter{limiter: rate.NewLimiter(refill, perHour)}
			limiters[ip] = l
		}
		l.lastSeen = now
		if len(limiters) > 10_000 {
			for key, entry := range limiters {
				if now.Sub(entry.lastSeen) > limiterIdleTTL {
					delete(limiters, key)
				}
			}
		}
		mu.Unlock()

		if !l.limiter.Allow() {
			logger.Warn("rate limit exceeded",
				zap.String("client_ip", ip),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "too many requests, slow down",
				},
			})
			return
		}
		c.Next()
	}
}
