package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminAuth guards admin endpoints with the shared admin secret, accepted from
// the x-admin-secret header or the secret query parameter.
func AdminAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("x-admin-secret")
		if provided == "" {
			provided = c.Query("secret")
		}

		if !SecretMatches(provided, secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Next()
	}
}

// SecretMatches compares a provided secret against the expected one in
// constant time. Empty values never match.
func SecretMatches(provided, expected string) bool {
	if provided == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
