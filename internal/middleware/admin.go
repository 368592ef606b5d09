package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware guards maintenance endpoints with a static API key.
type AdminMiddleware struct {
	apiKey string
}

// NewAdminMiddleware creates the middleware. An empty key disables every
// guarded endpoint.
func NewAdminMiddleware(apiKey string) *AdminMiddleware {
	return &AdminMiddleware{apiKey: apiKey}
}

// RequireAdminAuth accepts the key as a Bearer token or in X-API-Key.
func (am *AdminMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if am.apiKey == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "Forbidden",
				"message": "Admin endpoints are disabled",
			})
			return
		}

		if key, ok := bearerToken(c.GetHeader("Authorization")); ok && am.ValidateAdminKey(key) {
			c.Next()
			return
		}
		if am.ValidateAdminKey(c.GetHeader("X-API-Key")) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":   "Unauthorized",
			"message": "Valid admin API key required for this endpoint",
		})
	}
}

// ValidateAdminKey compares key with the configured key in constant time.
func (am *AdminMiddleware) ValidateAdminKey(key string) bool {
	if am.apiKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(am.apiKey)) == 1
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
