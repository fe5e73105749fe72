package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moltworks/molt-oracle/internal/domain"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/logger"
)

const (
	// MoltbookTokenHeader carries a platform identity token
	MoltbookTokenHeader = "X-Moltbook-Identity-Token"
	// APIKeyHeader carries a locally issued API key
	APIKeyHeader = "X-API-Key"

	// IdentityKey is the gin context key holding the resolved caller identity
	IdentityKey = "caller_identity"
)

// Auth returns a gin middleware that authenticates the caller through the
// identity resolver. The Moltbook token channel takes precedence over the
// API key channel; a presented credential must succeed on its own.
func Auth(resolver identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(MoltbookTokenHeader)
		apiKey := extractAPIKey(c)

		caller, err := resolver.Resolve(c.Request.Context(), token, apiKey)
		if err != nil {
			var authErr *domain.AuthError
			if errors.As(err, &authErr) {
				logger.Warn("authentication failed",
					zap.String("channel", authErr.Channel),
					zap.String("path", c.Request.URL.Path),
					zap.String("client_ip", c.ClientIP()),
				)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": gin.H{
						"code":    "unauthorized",
						"message": authErr.Message,
					},
				})
				return
			}

			logger.Error(err, zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": gin.H{
					"code":    "internal_error",
					"message": "authentication temporarily unavailable",
				},
			})
			return
		}

		c.Set(IdentityKey, caller)
		c.Next()
	}
}

// CallerIdentity returns the identity stored by Auth, nil when absent
func CallerIdentity(c *gin.Context) *identity.Identity {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return nil
	}
	caller, ok := v.(*identity.Identity)
	if !ok {
		return nil
	}
	return caller
}

// extractAPIKey reads the API key from its dedicated header or from a
// bearer Authorization header carrying a locally issued key
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return key
	}

	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") &&
		strings.HasPrefix(parts[1], domain.APIKeyPrefix) {
		return parts[1]
	}
	return ""
}
