package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/moltworks/molt-oracle/internal/api/middleware"
	"github.com/moltworks/molt-oracle/internal/identity"
)

// RateLimits holds the per-IP arrival ceilings of the write endpoints
type RateLimits struct {
	RegisterPerHour int
	ProofsPerHour   int
}

// SetupRoutes configures all REST API routes
func SetupRoutes(router *gin.Engine, handler Handler, resolver identity.Resolver, limits RateLimits) {
	// Health check endpoint (no auth, no version prefix)
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Registration and claim redemption (open, rate limited)
		v1.POST("/agents/register", middleware.RateLimit(limits.RegisterPerHour), handler.RegisterAgent)
		v1.POST("/agents/verify", middleware.RateLimit(limits.RegisterPerHour), handler.VerifyAgent)

		// Proof submission (requires authentication, rate limited)
		v1.POST("/proofs", middleware.RateLimit(limits.ProofsPerHour), middleware.Auth(resolver), handler.SubmitProof)

		// Public read surface
		v1.GET("/proofs", handler.ListProofs)
		v1.GET("/agents", handler.Leaderboard)
		v1.GET("/agents/by-row/:rowId", handler.GetAgentByRowID)
		v1.GET("/agents/:id", handler.GetAgent)
		v1.GET("/stats", handler.GetStats)
	}
}
